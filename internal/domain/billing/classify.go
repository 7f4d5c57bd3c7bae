package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
)

// Stage tells the caller whether the ledger saw the document.
type Stage string

const (
	// StageNotSent: failed before anything reached the ledger.
	StageNotSent Stage = "not_sent"
	// StageRejected: the ledger answered and did not create the document.
	StageRejected Stage = "rejected"
	// StageUncertain: the document may exist; reconcile with FindSubmitted.
	StageUncertain Stage = "uncertain"
)

// DetailStage is the AppError details key holding the Stage.
const DetailStage = "stage"

// StageOf returns the stage recorded on err, or "" when none is.
func StageOf(err error) Stage {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return ""
	}
	s, _ := appErr.Detail(DetailStage).(Stage)
	return s
}

func withStage(e *apperror.AppError, s Stage) *apperror.AppError {
	return e.WithDetail(DetailStage, s)
}

func notSent(e *apperror.AppError) *apperror.AppError {
	return withStage(e, StageNotSent)
}

func notSentErr(err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return notSent(appErr)
	}
	return notSent(apperror.NewInternal(err))
}

var fieldSuggestions = map[string]string{
	"customer":                "Check that the customer is registered in the ledger with the correct identification",
	"customer.identification": "Check that the customer is registered in the ledger with the correct identification",
	"items":                   "Check that the product codes exist in the ledger and are active",
	"items.code":              "Check that the product codes exist in the ledger and are active",
	"items.price":             "Check that prices are valid (up to 6 decimals, 2 for quotations)",
	"items.quantity":          "Check that quantities are valid (up to 2 decimals)",
	"payments":                "Check the payment method and amounts",
	"document":                "Check that the document type exists in the ledger",
	"document.id":             "Check that the document type exists in the ledger",
	"seller":                  "Check that the seller exists in the ledger and is active",
}

// Suggestions maps the payload fields an upstream error references to
// remediation hints, one per distinct hint.
func Suggestions(fields []string) []string {
	if len(fields) == 0 {
		return []string{
			"Check that all required data is present",
			"Check that the customer and products exist in the ledger",
		}
	}

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		hint, ok := fieldSuggestions[f]
		if !ok {
			hint = "Check field: " + f
		}
		if _, dup := seen[hint]; dup {
			continue
		}
		seen[hint] = struct{}{}
		out = append(out, hint)
	}
	return out
}

// Classify turns a submission failure into an AppError carrying a stage,
// the upstream body and, for validation failures, per-field suggestions.
func Classify(err error) *apperror.AppError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return withStage(apperror.NewUnexpected("submission interrupted before the ledger answered").WithCause(err), StageUncertain)
	}

	if se, ok := ledger.AsStatusError(err); ok && !se.RateLimited() {
		return classifyStatus(se)
	}

	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Detail(DetailStage) != nil {
			return appErr
		}
		if appErr.Code == apperror.CodeRateLimitExceeded {
			return withStage(appErr, StageRejected)
		}
		return withStage(appErr, StageNotSent)
	}

	return withStage(apperror.NewUnexpected("ledger submission failed").WithCause(err), StageUncertain)
}

func classifyStatus(se *ledger.StatusError) *apperror.AppError {
	up := parseUpstream(se.Body)

	var e *apperror.AppError
	stage := StageRejected
	switch se.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e = apperror.NewValidation("ledger rejected the document: " + up.summary()).
			WithDetail("fields", up.fields).
			WithDetail("suggestions", Suggestions(up.fields))
	case http.StatusUnauthorized:
		e = apperror.NewAuth("ledger credentials are invalid or expired")
	case http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
		e = apperror.NewUpstreamRejected("ledger refused the document: " + up.summary())
	default:
		e = apperror.NewUnexpected(fmt.Sprintf("ledger responded %d: %s", se.StatusCode, up.summary()))
		stage = StageUncertain
	}

	return withStage(e.
		WithCause(se).
		WithDetail("upstream_status", se.StatusCode).
		WithDetail("upstream", up.raw), stage)
}

type upstreamBody struct {
	fields   []string
	messages []string
	raw      any
}

func (u upstreamBody) summary() string {
	if len(u.messages) == 0 {
		return "no details"
	}
	return strings.Join(u.messages, "; ")
}

type upstreamError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Params  []string `json:"params"`
}

// parseUpstream understands both error shapes the ledger uses:
// {"Errors":[{"Code","Message","Params":[field]}]} and {"errors":{field:[msg]}}.
func parseUpstream(body []byte) upstreamBody {
	var out upstreamBody

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return out
	}
	if err := json.Unmarshal(trimmed, &out.raw); err != nil {
		out.raw = string(trimmed)
		out.messages = []string{string(trimmed)}
		return out
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return out
	}

	seen := make(map[string]struct{})
	addField := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" {
			return
		}
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		out.fields = append(out.fields, f)
	}

	for _, key := range []string{"Errors", "errors"} {
		raw, ok := top[key]
		if !ok {
			continue
		}

		var list []upstreamError
		if err := json.Unmarshal(raw, &list); err == nil {
			for _, e := range list {
				for _, p := range e.Params {
					addField(p)
				}
				if e.Message != "" {
					out.messages = append(out.messages, e.Message)
				} else if e.Code != "" {
					out.messages = append(out.messages, e.Code)
				}
			}
			continue
		}

		var byField map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byField); err == nil {
			keys := make([]string, 0, len(byField))
			for field := range byField {
				keys = append(keys, field)
			}
			sort.Strings(keys)
			for _, field := range keys {
				addField(field)
				out.messages = append(out.messages, fieldMessages(field, byField[field])...)
			}
		}
	}

	for _, key := range []string{"message", "Message"} {
		var msg string
		if raw, ok := top[key]; ok && json.Unmarshal(raw, &msg) == nil && msg != "" {
			out.messages = append(out.messages, msg)
		}
	}
	return out
}

func fieldMessages(field string, raw json.RawMessage) []string {
	var one string
	if json.Unmarshal(raw, &one) == nil {
		return []string{field + ": " + one}
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		out := make([]string, 0, len(many))
		for _, m := range many {
			out = append(out, field+": "+m)
		}
		return out
	}
	return []string{field}
}
