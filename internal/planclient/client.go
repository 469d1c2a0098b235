// Package planclient запрашивает /api/my-plan так же, как это делает клиентское
// приложение, и отдаёт ответ в виде, который понимает выбор экрана.
package planclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

const myPlanPath = "/api/my-plan"

// maxBodyBytes ограничивает размер читаемого ответа.
const maxBodyBytes = 1 << 20

// Client — HTTP-клиент сервиса плана.
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент для сервиса по адресу apiURL.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// FetchMyPlan запрашивает план текущей сессии.
//
// Ответ сервера возвращается со своим кодом: 200, 401, 404 и 5xx разбираются
// в PlanResponse без ошибки. Если ответ не получен, возвращается ответ со
// статусом models.StatusTransportError и ошибка транспорта.
func (c *Client) FetchMyPlan(ctx context.Context, token string) (*models.PlanResponse, error) {
	const op = "planclient.FetchMyPlan"

	req, err := c.newRequest(ctx, http.MethodGet, myPlanPath, token)
	if err != nil {
		return transportError(), fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(), fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(), fmt.Errorf("%s: %w", op, err)
	}

	out := &models.PlanResponse{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, &out.Body); err != nil {
		// Тело 5xx от прокси может быть не JSON: сохраняем код и текст.
		if resp.StatusCode >= http.StatusInternalServerError {
			out.Body.Message = strings.TrimSpace(string(raw))
			return out, nil
		}
		return out, fmt.Errorf("%s: decode %d body: %w", op, resp.StatusCode, err)
	}
	return out, nil
}

func transportError() *models.PlanResponse {
	return &models.PlanResponse{Status: models.StatusTransportError}
}
