// internal/api/banks.go
package api

import (
	"context"
	"net/http"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/domain/question"
)

// Bank is a question bank summary as listed by the API.
type Bank struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	QuestionsCount int    `json:"questions_count"`
}

type banksResponse struct {
	Message string `json:"message"`
	Data    []Bank `json:"data"`
}

// Banks lists the user's question banks.
func (c *Client) Banks(ctx context.Context, token string) ([]Bank, error) {
	resp, err := c.do(ctx, http.MethodGet, c.url(c.eps.Banks), token, nil)
	if err != nil {
		return nil, err
	}

	var parsed banksResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return nil, err
	}
	return parsed.Data, nil
}

type createBankRequest struct {
	Name string `json:"name"`
}

type createBankResponse struct {
	Message string `json:"message"`
	Data    Bank   `json:"data"`
}

// CreateBank creates an empty question bank.
func (c *Client) CreateBank(ctx context.Context, token, name string) (Bank, error) {
	if name == "" {
		return Bank{}, apierr.New(apierr.KindInvalidInput, "Bank name is required.")
	}

	resp, err := c.do(ctx, http.MethodPost, c.url(c.eps.Banks), token, createBankRequest{Name: name})
	if err != nil {
		return Bank{}, err
	}

	var parsed createBankResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return Bank{}, err
	}
	return parsed.Data, nil
}

type saveQuestionsRequest struct {
	Questions []question.Question `json:"questions"`
}

// SaveQuestions appends extracted questions to a bank in one call. Every
// question is validated locally first so a half-broken extraction never
// reaches the server.
func (c *Client) SaveQuestions(ctx context.Context, token, bankID string, questions []question.Question) error {
	if bankID == "" {
		return apierr.New(apierr.KindInvalidInput, "Choose a bank to save into.")
	}
	if len(questions) == 0 {
		return apierr.New(apierr.KindInvalidInput, "There are no questions to save.")
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return apierr.Wrap(apierr.KindInvalidInput, "Some extracted questions are incomplete.", err)
		}
	}

	_, err := c.do(ctx, http.MethodPost, c.url(c.eps.Banks)+"/"+bankID+"/questions/bulk", token, saveQuestionsRequest{Questions: questions})
	if err != nil {
		return err
	}

	c.logger.Info("questions saved", "bank_id", bankID, "count", len(questions))
	return nil
}
