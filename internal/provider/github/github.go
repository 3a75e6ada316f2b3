package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/guarderr"
	"github.com/simplesurance/mergeguard/internal/idgen"
	"github.com/simplesurance/mergeguard/internal/logfields"
)

const loggerName = "github-event-provider"

// maxPayloadSize is the max. size of webhook payloads that GitHub sends.
const maxPayloadSize = 25 * 1024 * 1024

const signatureHeader = "X-Hub-Signature-256"

// EventHandler processes verified and parsed webhook events.
type EventHandler interface {
	HandleEvent(context.Context, *Event) error
}

// Provider receives github-webhook http-requests, verifies and parses them
// and passes them to an EventHandler.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	handler       EventHandler
}

type option func(*Provider)

// WithPayloadSecret enables verifying the webhook signatures with secret.
func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(handler EventHandler, opts ...option) *Provider {
	p := Provider{
		handler: handler,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logger == nil {
		p.logger = zap.L().Named(loggerName)
	}

	return &p
}

// Response is the JSON body of every response.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteResponse writes a JSON Response with the given HTTP status code.
// If code is a 2xx code, the status field is "ok", otherwise "error".
func WriteResponse(resp http.ResponseWriter, code int, msg string) {
	r := Response{Status: StatusOK, Message: msg}
	if code < 200 || code > 299 {
		r.Status = StatusError
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(code)
	_ = json.NewEncoder(resp).Encode(&r)
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	deliveryID := github.DeliveryID(req)
	if deliveryID == "" {
		deliveryID = idgen.DeliveryID()
	}
	hookType := github.WebHookType(req)

	logger := p.logger.With(
		logfields.EventProvider("github"),
		logfields.DeliveryID(deliveryID),
		logfields.WebhookType(hookType),
	)

	logger.Debug("received a http request", logfields.Event("github_http_request_received"))

	if req.Method != http.MethodPost {
		WriteResponse(resp, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(resp, req.Body, maxPayloadSize))
	if err != nil {
		logger.Info(
			"reading http request body failed",
			logfields.Event("github_http_request_reading_failed"),
			zap.Error(err),
		)
		WriteResponse(resp, http.StatusBadRequest, "reading request body failed")
		return
	}

	err = VerifySignature(req.Header.Get(signatureHeader), p.webhookSecret, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, signature verification failed",
			logfields.Event("github_http_request_verification_failed"),
			zap.Error(err),
		)
		WriteResponse(resp, http.StatusForbidden, verificationErrorMsg(err))
		return
	}

	if hookType == "" {
		logger.Info(
			"received invalid http request, event type header is missing",
			logfields.Event("github_http_request_validation_failed"),
		)
		WriteResponse(resp, http.StatusBadRequest, "Missing X-GitHub-Event header")
		return
	}

	ev, err := ParseEvent(deliveryID, hookType, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, parsing failed",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)
		WriteResponse(resp, http.StatusBadRequest, err.Error())
		return
	}

	logger = logger.With(ev.LogFields...)
	logger.Debug(
		"received event",
		logfields.Event("github_event_received"),
		zap.ByteString("http_body", payload),
	)

	err = p.handler.HandleEvent(req.Context(), ev)
	if err != nil {
		code := statusCode(err)
		if code >= http.StatusInternalServerError && code != http.StatusNotImplemented {
			logger.Error(
				"processing event failed",
				logfields.Event("github_event_processing_failed"),
				zap.Error(err),
			)
		} else {
			logger.Info(
				"event not processed",
				logfields.Event("github_event_not_processed"),
				zap.Error(err),
			)
		}

		WriteResponse(resp, code, err.Error())
		return
	}

	WriteResponse(resp, http.StatusOK, "")
}

func statusCode(err error) int {
	var verificationErr *guarderr.VerificationError
	var payloadErr *guarderr.PayloadError

	switch {
	case errors.As(err, &verificationErr):
		return http.StatusForbidden
	case errors.As(err, &payloadErr):
		return http.StatusBadRequest
	case errors.Is(err, guarderr.ErrEventNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func verificationErrorMsg(err error) string {
	var verificationErr *guarderr.VerificationError
	if !errors.As(err, &verificationErr) {
		return err.Error()
	}

	switch verificationErr.Reason {
	case guarderr.ReasonMissingHeader:
		return "Missing " + signatureHeader + " header"
	case guarderr.ReasonMalformedHeader:
		return "Invalid " + signatureHeader + " header"
	default:
		return "Invalid webhook signature"
	}
}
