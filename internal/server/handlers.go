package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vvatanabe/sqsredrive"
)

type addQueueRequest struct {
	Identifier string `json:"identifier"`
	Region     string `json:"region"`
}

type sendMessageRequest struct {
	Body         string                                      `json:"body"`
	Attributes   map[string]sqsredrive.MessageAttributeValue `json:"attributes"`
	DelaySeconds *int32                                      `json:"delaySeconds"`
}

type changeVisibilityRequest struct {
	VisibilityTimeout *int `json:"visibilityTimeout"`
}

type redriveRequest struct {
	MaxMessages *int `json:"maxMessages"`
	RedriveAll  bool `json:"redriveAll"`
}

type selectedMessage struct {
	MessageID     string         `json:"messageId"`
	ReceiptHandle string         `json:"receiptHandle"`
	Body          string         `json:"body"`
	Attributes    map[string]any `json:"messageAttributes"`
}

type selectiveRedriveRequest struct {
	Messages []selectedMessage `json:"messages"`
}

type setProfileRequest struct {
	ProfileName string `json:"profileName"`
}

func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequestError{msg: fmt.Sprintf("Malformed request body: %v.", err)}
}

func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, badRequestError{msg: fmt.Sprintf("Query parameter %s must be an integer: %q.", name, raw)}
	}
	return &v, nil
}

func queryInt32(r *http.Request, name string) (*int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return nil, badRequestError{msg: fmt.Sprintf("Query parameter %s is out of range: %q.", name, raw)}
	}
	if err != nil {
		return nil, badRequestError{msg: fmt.Sprintf("Query parameter %s must be an integer: %q.", name, raw)}
	}
	n := int32(v)
	return &n, nil
}

func receiveInput(r *http.Request, withWait bool) (*sqsredrive.ReceiveInput, error) {
	in := &sqsredrive.ReceiveInput{}
	maxMessages, err := queryInt(r, "maxMessages")
	if err != nil {
		return nil, err
	}
	if maxMessages != nil {
		in.MaxMessages = *maxMessages
		if in.MaxMessages == 0 {
			return nil, sqsredrive.InvalidBatchSizeError{Size: 0}
		}
	}
	if in.VisibilityTimeout, err = queryInt32(r, "visibilityTimeout"); err != nil {
		return nil, err
	}
	if withWait {
		if in.WaitTimeSeconds, err = queryInt32(r, "waitTimeSeconds"); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func queueID(r *http.Request) string {
	return chi.URLParam(r, "queueId")
}

func success(extra map[string]any) map[string]any {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) addQueue(w http.ResponseWriter, r *http.Request) {
	var req addQueueRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Identifier == "" {
		s.writeError(w, r, badRequestError{msg: "Queue name or URL is required."})
		return
	}
	queue, err := s.svc.AddQueue(r.Context(), &sqsredrive.AddQueueInput{
		Identifier: req.Identifier,
		Region:     req.Region,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) listQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := s.svc.ListQueues(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queues)
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.svc.GetQueue(r.Context(), queueID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) refreshQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.svc.RefreshQueue(r.Context(), queueID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) removeQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveQueue(r.Context(), queueID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) purgeQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.PurgeQueue(r.Context(), queueID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"message": "Queue purged successfully"}))
}

func (s *Server) receiveMessages(w http.ResponseWriter, r *http.Request) {
	in, err := receiveInput(r, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	messages, err := s.svc.ReceiveMessages(r.Context(), queueID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) receiveDLQMessages(w http.ResponseWriter, r *http.Request) {
	in, err := receiveInput(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	messages, err := s.svc.ReceiveDLQMessages(r.Context(), queueID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	messageID, err := s.svc.SendMessage(r.Context(), queueID(r), &sqsredrive.SendInput{
		Body:         req.Body,
		Attributes:   req.Attributes,
		DelaySeconds: req.DelaySeconds,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"messageId": messageID}))
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	err := s.svc.DeleteMessage(r.Context(), queueID(r), r.URL.Query().Get("receiptHandle"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(nil))
}

func (s *Server) changeVisibility(w http.ResponseWriter, r *http.Request) {
	var req changeVisibilityRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.VisibilityTimeout == nil {
		s.writeError(w, r, badRequestError{msg: "visibilityTimeout is required."})
		return
	}
	err := s.svc.ChangeVisibility(r.Context(), queueID(r), r.URL.Query().Get("receiptHandle"), *req.VisibilityTimeout)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(nil))
}

func (s *Server) redriveBulk(w http.ResponseWriter, r *http.Request) {
	var req redriveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.RedriveBulk(r.Context(), queueID(r), sqsredrive.TargetFromRequest(req.MaxMessages, req.RedriveAll))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Redact(Redact))
}

func (s *Server) redriveSelected(w http.ResponseWriter, r *http.Request) {
	var req selectiveRedriveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snapshots := make([]sqsredrive.MessageSnapshot, 0, len(req.Messages))
	for _, m := range req.Messages {
		snapshots = append(snapshots, sqsredrive.MessageSnapshot{
			ID:            m.MessageID,
			Body:          m.Body,
			ReceiptHandle: m.ReceiptHandle,
			Attributes:    sqsredrive.ConvertAttributes(m.Attributes),
		})
	}
	result, err := s.svc.RedriveSelected(r.Context(), queueID(r), snapshots)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Redact(Redact))
}

func (s *Server) getProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"activeProfile": s.svc.Profile()})
}

func (s *Server) listProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Profiles())
}

func (s *Server) setProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.SetProfile(r.Context(), req.ProfileName); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"activeProfile": req.ProfileName}))
}

func (s *Server) testCredentials(w http.ResponseWriter, r *http.Request) {
	identity, err := s.svc.VerifyCredentials(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("credential check failed")
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"error": Redact(err.Error()),
		})
		return
	}
	method := "default"
	if identity.Profile != "" {
		method = "profile:" + identity.Profile
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"accountId": identity.Account,
		"arn":       identity.ARN,
		"method":    method,
	})
}
