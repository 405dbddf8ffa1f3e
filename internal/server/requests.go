package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"

	"logdesk/internal/access"
	"logdesk/internal/interfaces"
	"logdesk/internal/types"
)

// maxBodyBytes bounds request bodies; they only ever carry a flag or a role
const maxBodyBytes = 4096

type roleRequest struct {
	Role string `json:"role"`
}

func (r roleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.By(knownRole)),
	)
}

type statusRequest struct {
	Resolved *bool `json:"resolved"`
}

func (r statusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Resolved, validation.NotNil),
	)
}

// logsQuery is the raw query string of GET /api/logs
type logsQuery struct {
	Text *string
	Date *string
	Page string
}

func (q logsQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Date, validation.By(dateOrEmpty)),
		validation.Field(&q.Page, validation.By(integer)),
	)
}

// parseLogsQuery turns the query string into a desk request. Absent
// parameters leave the query state unchanged; an empty date clears it.
func parseLogsQuery(r *http.Request) (interfaces.QueryRequest, error) {
	values := r.URL.Query()

	var raw logsQuery
	if values.Has("text") {
		text := values.Get("text")
		raw.Text = &text
	}
	if values.Has("date") {
		date := values.Get("date")
		raw.Date = &date
	}
	raw.Page = values.Get("page")

	if err := raw.Validate(); err != nil {
		return interfaces.QueryRequest{}, err
	}

	req := interfaces.QueryRequest{Text: raw.Text}
	if raw.Date != nil {
		if *raw.Date == "" {
			req.ClearDate = true
		} else {
			date, err := types.ParseDate(*raw.Date)
			if err != nil {
				return interfaces.QueryRequest{}, err
			}
			req.Date = &date
		}
	}
	if raw.Page != "" {
		page, err := strconv.Atoi(raw.Page)
		if err != nil {
			return interfaces.QueryRequest{}, err
		}
		req.Page = &page
	}
	return req, nil
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func knownRole(value interface{}) error {
	s, _ := value.(string)
	if _, err := access.ParseRole(s); err != nil {
		return errors.New("must be one of admin, operator, viewer")
	}
	return nil
}

func dateOrEmpty(value interface{}) error {
	s, ok := value.(*string)
	if !ok || s == nil || *s == "" {
		return nil
	}
	if _, err := types.ParseDate(*s); err != nil {
		return errors.New("must be a date in YYYY-MM-DD format")
	}
	return nil
}

// integer accepts any whole number; the desk clamps it into the page range
func integer(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := strconv.Atoi(s); err != nil {
		return errors.New("must be an integer")
	}
	return nil
}
