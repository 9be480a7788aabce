package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/types"
)

// encodeFailure is sent when a payload cannot be marshalled. Nothing has been
// written at that point, so the client still gets a well-formed envelope.
var encodeFailure = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}` + "\n")

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	render(w, status, types.SuccessEnvelope{Data: data})
}

// WriteUpgrade renders a plan gate denial. It is a product prompt, not an
// error envelope, so clients can show an upgrade screen.
func WriteUpgrade(w http.ResponseWriter, prompt types.UpgradePrompt) {
	render(w, http.StatusPaymentRequired, types.UpgradeEnvelope{Upgrade: prompt})
}

// WriteAttachment sends body as a download named filename.
func WriteAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type upgradePrompter interface {
	error
	Prompt() types.UpgradePrompt
}

// WriteError renders err and logs it: plan denials as an upgrade prompt at
// info, client errors at warn, everything else at error with the dump.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	var denial upgradePrompter
	if errors.As(err, &denial) {
		prompt := denial.Prompt()
		WriteUpgrade(w, prompt)
		if logg != nil {
			logg.Info(logg.WithField(ctx, "capability", prompt.Capability), "request.upgrade_required")
		}
		return
	}

	typed := classify(err)
	status := pkgerrors.MetadataFor(typed.Code()).HTTPStatus
	render(w, status, envelopeFor(typed))

	if logg == nil {
		return
	}
	fields := pkgerrors.Dump(err).Fields()
	fields["status"] = status
	ctx = logg.WithFields(ctx, fields)
	if status < http.StatusInternalServerError {
		logg.Warn(ctx, "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

// Envelope builds the public error payload for err without writing it.
// Batch endpoints embed it per operation.
func Envelope(err error) types.ErrorEnvelope {
	return envelopeFor(classify(err))
}

// classify treats anything that is not a typed error as internal so its
// message never reaches the client.
func classify(err error) *pkgerrors.Error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

func envelopeFor(typed *pkgerrors.Error) types.ErrorEnvelope {
	out := types.ErrorEnvelope{Error: types.APIError{
		Code:    string(typed.Code()),
		Message: typed.PublicMessage(),
	}}
	if typed.Code().Metadata().DetailsAllowed {
		out.Error.Details = typed.Details()
	}
	return out
}

func render(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status, body = http.StatusInternalServerError, encodeFailure
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
