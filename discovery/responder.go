package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/natsclient"
	"github.com/zainbaq/medical-ml/registry"
)

// QueueGroup is shared by registry replicas so each request is answered once
const QueueGroup = "medical-ml-registry"

// MessageSubscriber is the part of natsclient.Client the responder needs
type MessageSubscriber interface {
	QueueSubscribe(ctx context.Context, subject, queue string, handler natsclient.Handler) error
}

// GetRequest selects one service. A bare service id is accepted as well.
type GetRequest struct {
	ServiceID string `json:"service_id"`
}

type notFoundReply struct {
	Detail string `json:"detail"`
}

// Responder answers discovery requests over NATS with the same JSON the
// HTTP API returns.
type Responder struct {
	store  *registry.Store
	conn   MessageSubscriber
	prefix string
	logger *slog.Logger
}

// NewResponder creates a responder for subjects under prefix
func NewResponder(store *registry.Store, conn MessageSubscriber, prefix string, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default().With("component", "discovery-responder")
	}
	return &Responder{store: store, conn: conn, prefix: prefix, logger: logger}
}

// Start subscribes the list and get handlers
func (r *Responder) Start(ctx context.Context) error {
	if err := r.conn.QueueSubscribe(ctx, ListSubject(r.prefix), QueueGroup, r.HandleList); err != nil {
		return errors.Wrap(err, "Responder", "Start", "subscribe list")
	}
	if err := r.conn.QueueSubscribe(ctx, GetSubject(r.prefix), QueueGroup, r.HandleGet); err != nil {
		return errors.Wrap(err, "Responder", "Start", "subscribe get")
	}
	r.logger.Info("Discovery responder started", "list", ListSubject(r.prefix), "get", GetSubject(r.prefix))
	return nil
}

// HandleList replies with every registered service
func (r *Responder) HandleList(_ context.Context, _ string, _ []byte) ([]byte, error) {
	data, err := json.Marshal(r.store.List())
	if err != nil {
		return nil, errors.Wrap(err, "Responder", "HandleList", "marshal services")
	}
	return data, nil
}

// HandleGet replies with the requested record or a not found detail
func (r *Responder) HandleGet(_ context.Context, _ string, data []byte) ([]byte, error) {
	id, err := parseServiceID(data)
	if err != nil {
		return json.Marshal(notFoundReply{Detail: err.Error()})
	}

	rec, ok := r.store.Get(id)
	if !ok {
		return json.Marshal(notFoundReply{Detail: fmt.Sprintf("Service '%s' not found", id)})
	}
	return json.Marshal(rec)
}

func parseServiceID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Responder", "HandleGet", "read service_id")
	}
	if data[0] != '{' {
		return string(data), nil
	}

	var req GetRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", errors.WrapInvalid(err, "Responder", "HandleGet", "decode request")
	}
	if req.ServiceID == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Responder", "HandleGet", "read service_id")
	}
	return req.ServiceID, nil
}
