package github

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/gate"
	"github.com/simplesurance/mergeguard/internal/guarderr"
	"github.com/simplesurance/mergeguard/internal/logfields"
)

// EventKind is the type of a GitHub webhook event.
type EventKind uint8

const (
	EventKindUnsupported EventKind = iota
	EventKindPullRequest
	EventKindCheckRun
	EventKindIssueComment
)

var eventKindStrings = [...]string{
	EventKindUnsupported:  "unsupported",
	EventKindPullRequest:  "pull_request",
	EventKindCheckRun:     "check_run",
	EventKindIssueComment: "issue_comment",
}

func (k EventKind) String() string {
	if int(k) > len(eventKindStrings)-1 {
		return fmt.Sprintf("unsupported EventKind value: %d", k)
	}

	return eventKindStrings[k]
}

// ParseEventKind converts the value of an X-GitHub-Event header to an
// EventKind.
func ParseEventKind(webhookType string) EventKind {
	switch webhookType {
	case "pull_request":
		return EventKindPullRequest
	case "check_run":
		return EventKindCheckRun
	case "issue_comment":
		return EventKindIssueComment
	default:
		return EventKindUnsupported
	}
}

// Event is a preprocessed GitHub webhook event.
// Fields that are not part of the event kind are empty.
type Event struct {
	// DeliveryID is the unique github ID of the event
	DeliveryID string
	// Type is the value of the X-GitHub-Event header.
	Type   string
	Kind   EventKind
	Action string

	InstallationID int64
	// Repository is the full name of the repository (owner/name).
	Repository string
	// Commit is the head commit of the pull request or check-run.
	// It is empty for issue_comment events.
	Commit string
	// PullRequestNumber is 0 if the event is not related to a pull
	// request.
	PullRequestNumber int
	// CheckRun is set for check_run events.
	CheckRun *gate.CheckRun
	// CommentBody is set for issue_comment events.
	CommentBody string

	LogFields []zap.Field
}

func (e *Event) String() string {
	return fmt.Sprintf("%s (deliveryID: %s)", e.Type, e.DeliveryID)
}

type Installation struct {
	ID int64 `json:"id"`
}

type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type BranchRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type PullRequest struct {
	Number int        `json:"number"`
	Title  string     `json:"title"`
	Head   *BranchRef `json:"head"`
}

type PullRequestEvent struct {
	Action       string        `json:"action"`
	Number       int           `json:"number"`
	Installation *Installation `json:"installation"`
	PullRequest  *PullRequest  `json:"pull_request"`
	Repository   *Repository   `json:"repository"`
}

type CheckRunEvent struct {
	Action       string         `json:"action"`
	CheckRun     *gate.CheckRun `json:"check_run"`
	Installation *Installation  `json:"installation"`
	Repository   *Repository    `json:"repository"`
}

type Issue struct {
	Number int `json:"number"`
	// PullRequest is only set when the issue is a pull request.
	PullRequest json.RawMessage `json:"pull_request"`
}

type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

type IssueCommentEvent struct {
	Action       string        `json:"action"`
	Issue        *Issue        `json:"issue"`
	Comment      *Comment      `json:"comment"`
	Installation *Installation `json:"installation"`
	Repository   *Repository   `json:"repository"`
}

func installationID(i *Installation) (int64, error) {
	if i == nil || i.ID == 0 {
		return 0, errors.New("installation id is missing")
	}

	return i.ID, nil
}

func repositoryName(r *Repository) (string, error) {
	if r == nil || r.FullName == "" {
		return "", errors.New("repository full_name is missing")
	}

	return r.FullName, nil
}

// ParseEvent parses the payload of a webhook event.
// For unsupported event kinds an Event with EventKindUnsupported is
// returned and the payload is not parsed.
// When the payload of a supported event is invalid, a
// *guarderr.PayloadError is returned.
func ParseEvent(deliveryID, webhookType string, payload []byte) (*Event, error) {
	ev := Event{
		DeliveryID: deliveryID,
		Type:       webhookType,
		Kind:       ParseEventKind(webhookType),
	}

	var err error
	switch ev.Kind {
	case EventKindPullRequest:
		err = ev.parsePullRequest(payload)
	case EventKindCheckRun:
		err = ev.parseCheckRun(payload)
	case EventKindIssueComment:
		err = ev.parseIssueComment(payload)
	}
	if err != nil {
		return nil, guarderr.NewPayloadError(webhookType, err)
	}

	ev.LogFields = ev.logFields()

	return &ev, nil
}

func (e *Event) parsePullRequest(payload []byte) error {
	var pl PullRequestEvent
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}

	var err error
	if e.InstallationID, err = installationID(pl.Installation); err != nil {
		return err
	}

	if e.Repository, err = repositoryName(pl.Repository); err != nil {
		return err
	}

	if pl.PullRequest == nil || pl.PullRequest.Head == nil || pl.PullRequest.Head.SHA == "" {
		return errors.New("pull_request.head.sha is missing")
	}

	e.Action = pl.Action
	e.Commit = pl.PullRequest.Head.SHA
	e.PullRequestNumber = pl.Number
	if e.PullRequestNumber == 0 {
		e.PullRequestNumber = pl.PullRequest.Number
	}

	return nil
}

func (e *Event) parseCheckRun(payload []byte) error {
	var pl CheckRunEvent
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}

	var err error
	if e.InstallationID, err = installationID(pl.Installation); err != nil {
		return err
	}

	if e.Repository, err = repositoryName(pl.Repository); err != nil {
		return err
	}

	if pl.CheckRun == nil || pl.CheckRun.HeadSHA == "" {
		return errors.New("check_run.head_sha is missing")
	}

	e.Action = pl.Action
	e.CheckRun = pl.CheckRun
	e.Commit = pl.CheckRun.HeadSHA

	return nil
}

func (e *Event) parseIssueComment(payload []byte) error {
	var pl IssueCommentEvent
	if err := json.Unmarshal(payload, &pl); err != nil {
		return err
	}

	var err error
	if e.InstallationID, err = installationID(pl.Installation); err != nil {
		return err
	}

	if e.Repository, err = repositoryName(pl.Repository); err != nil {
		return err
	}

	if pl.Issue == nil || pl.Issue.Number == 0 {
		return errors.New("issue.number is missing")
	}

	if pl.Comment == nil {
		return errors.New("comment is missing")
	}

	e.Action = pl.Action
	e.CommentBody = pl.Comment.Body
	if isJSONSet(pl.Issue.PullRequest) {
		e.PullRequestNumber = pl.Issue.Number
	}

	return nil
}

func isJSONSet(raw json.RawMessage) bool {
	return len(raw) != 0 && string(raw) != "null"
}

func (e *Event) logFields() []zap.Field {
	fields := make([]zap.Field, 0, 8) // cap == max. size of fields we append

	fields = append(fields,
		logfields.EventProvider("github"),
		logfields.DeliveryID(e.DeliveryID),
		logfields.WebhookType(e.Type),
	)

	if e.Action != "" {
		fields = append(fields, logfields.Action(e.Action))
	}

	if e.InstallationID != 0 {
		fields = append(fields, logfields.Installation(e.InstallationID))
	}

	if e.Repository != "" {
		fields = append(fields, logfields.Repository(e.Repository))
	}

	if e.Commit != "" {
		fields = append(fields, logfields.Commit(e.Commit))
	}

	if e.PullRequestNumber != 0 {
		fields = append(fields, logfields.PullRequest(e.PullRequestNumber))
	}

	return fields
}
