package raffle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStore is a Store backed by a json-server style REST API:
// collections at /raffles and /registrations, query-string filters,
// POST to create and PATCH to partially update.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

// NewRemoteStore targets baseURL (e.g. "http://localhost:3000/api").
func NewRemoteStore(baseURL string, timeout time.Duration) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrNotFound) match a 404.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// query keeps parameters in insertion order so URLs read like the API docs.
type query []string

func (q query) add(key, value string) query {
	return append(q, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

func (q query) encode() string {
	if len(q) == 0 {
		return ""
	}
	return "?" + strings.Join(q, "&")
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Method: method, URL: req.URL.String(), StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// --- Raffles ---

func (s *RemoteStore) FindRaffles(ctx context.Context, filter RaffleFilter) ([]Raffle, error) {
	var q query
	if filter.ID != "" {
		q = q.add("id", filter.ID)
	}
	if filter.Status != "" {
		q = q.add("status", string(filter.Status))
	}
	var raffles []Raffle
	if err := s.do(ctx, http.MethodGet, "/raffles"+q.encode(), nil, &raffles); err != nil {
		return nil, err
	}
	return raffles, nil
}

func (s *RemoteStore) CreateRaffle(ctx context.Context, r Raffle) (Raffle, error) {
	body := struct {
		Period     string `json:"period"`
		TotalSpots int    `json:"totalSpots"`
		Status     Status `json:"status"`
	}{r.Period, r.TotalSpots, r.Status}

	var created Raffle
	if err := s.do(ctx, http.MethodPost, "/raffles", body, &created); err != nil {
		return Raffle{}, err
	}
	return created, nil
}

func (s *RemoteStore) PatchRaffle(ctx context.Context, id string, patch RafflePatch) (Raffle, error) {
	var updated Raffle
	if err := s.do(ctx, http.MethodPatch, "/raffles/"+url.PathEscape(id), patch, &updated); err != nil {
		return Raffle{}, err
	}
	return updated, nil
}

// --- Registrations ---

func (s *RemoteStore) FindRegistrations(ctx context.Context, filter RegistrationFilter) ([]Registration, error) {
	var q query
	if filter.ID != "" {
		q = q.add("id", filter.ID)
	}
	if filter.UserID != "" {
		q = q.add("userId", filter.UserID)
	}
	if filter.RaffleID != "" {
		q = q.add("raffleId", filter.RaffleID)
	}
	if filter.ExpandRaffle {
		q = q.add("_expand", "raffle")
	}
	if filter.NewestFirst {
		q = q.add("_sort", "registrationDate").add("_order", "desc")
	}

	var regs []Registration
	if err := s.do(ctx, http.MethodGet, "/registrations"+q.encode(), nil, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func (s *RemoteStore) CreateRegistration(ctx context.Context, reg Registration) (Registration, error) {
	body := struct {
		UserID           string    `json:"userId"`
		RaffleID         string    `json:"raffleId"`
		RegistrationDate Timestamp `json:"registrationDate"`
		IsWinner         bool      `json:"isWinner"`
	}{reg.UserID, reg.RaffleID, reg.RegistrationDate, reg.IsWinner}

	var created Registration
	if err := s.do(ctx, http.MethodPost, "/registrations", body, &created); err != nil {
		return Registration{}, err
	}
	return created, nil
}

func (s *RemoteStore) PatchRegistration(ctx context.Context, id string, patch RegistrationPatch) (Registration, error) {
	var updated Registration
	if err := s.do(ctx, http.MethodPatch, "/registrations/"+url.PathEscape(id), patch, &updated); err != nil {
		return Registration{}, err
	}
	return updated, nil
}
