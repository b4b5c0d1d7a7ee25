package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/punchclock/punch/internal/models"
)

// User is the authenticated account returned by the "who am I" endpoint.
type User struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// worklogRequest is the payload for recording time against a ticket.
type worklogRequest struct {
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	Comment          string `json:"comment,omitempty"`
}

type transitionsResponse struct {
	Transitions []models.Transition `json:"transitions"`
}

type transitionRequest struct {
	Transition struct {
		ID string `json:"id"`
	} `json:"transition"`
}

// Myself returns the account the current session authenticates as.
func (g *Gateway) Myself(ctx context.Context) (*User, error) {
	body, err := g.Get(ctx, "/myself")
	if err != nil {
		return nil, err
	}

	var user User

	err = json.Unmarshal(body, &user)
	if err != nil {
		return nil, fmt.Errorf("parsing myself response: %w", err)
	}

	return &user, nil
}

// probe is the session check used by Login and RestoreSession. Unlike
// Myself it never invalidates the session on 401.
func (g *Gateway) probe(ctx context.Context) error {
	_, err := g.doRequest(ctx, "GET", "/myself", nil, false)

	return err
}

// IssueSummary returns the summary field of a ticket.
func (g *Gateway) IssueSummary(ctx context.Context, key string) (string, error) {
	path := fmt.Sprintf("/issue/%s?fields=summary", url.PathEscape(key))

	body, err := g.Get(ctx, path)
	if err != nil {
		return "", err
	}

	var resp struct {
		Fields struct {
			Summary string `json:"summary"`
		} `json:"fields"`
	}

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return "", fmt.Errorf("parsing issue response: %w", err)
	}

	return resp.Fields.Summary, nil
}

// PostWorklog records elapsed seconds (and an optional comment) against a
// ticket.
func (g *Gateway) PostWorklog(
	ctx context.Context,
	key string,
	seconds int,
	comment string,
) error {
	path := fmt.Sprintf("/issue/%s/worklog", url.PathEscape(key))

	_, err := g.Post(ctx, path, worklogRequest{
		TimeSpentSeconds: seconds,
		Comment:          comment,
	})
	if err != nil {
		return fmt.Errorf("posting work log for %s: %w", key, err)
	}

	return nil
}

// Transitions returns the status transitions currently allowed for a
// ticket.
func (g *Gateway) Transitions(
	ctx context.Context,
	key string,
) ([]models.Transition, error) {
	path := fmt.Sprintf("/issue/%s/transitions", url.PathEscape(key))

	body, err := g.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp transitionsResponse

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("parsing transitions response: %w", err)
	}

	return resp.Transitions, nil
}

// DoTransition performs a status transition on a ticket.
func (g *Gateway) DoTransition(ctx context.Context, key, id string) error {
	path := fmt.Sprintf("/issue/%s/transitions", url.PathEscape(key))

	var req transitionRequest
	req.Transition.ID = id

	_, err := g.Post(ctx, path, req)
	if err != nil {
		return fmt.Errorf("transitioning %s: %w", key, err)
	}

	return nil
}
