package httpapi

import (
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// Wire shapes for the admin API. Domain types carry no JSON tags, so the
// mapping lives here rather than leaking transport concerns into types.

type createIdentityRequest struct {
	Name        string `json:"name"`
	TemplateID  *int   `json:"template_id,omitempty"`
	AccessLevel int    `json:"access_level"`
}

type abortRequest struct {
	Reason string `json:"reason,omitempty"`
}

type identityJSON struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	TemplateID  *int       `json:"template_id,omitempty"`
	AccessLevel int        `json:"access_level"`
	CreatedAt   time.Time  `json:"created_at"`
	LastAccess  *time.Time `json:"last_access,omitempty"`
}

type accessEventJSON struct {
	ID         int64     `json:"id"`
	IdentityID *int64    `json:"identity_id,omitempty"`
	Method     string    `json:"method"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	ImagePath  string    `json:"image_path,omitempty"`
}

type unknownCaptureJSON struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ImagePath string    `json:"image_path,omitempty"`
	Note      string    `json:"note,omitempty"`
}

func identityToJSON(id types.Identity) identityJSON {
	return identityJSON{
		ID:          id.ID,
		Name:        id.Name,
		TemplateID:  id.FingerTemplateID,
		AccessLevel: id.AccessLevel,
		CreatedAt:   id.CreatedAt,
		LastAccess:  id.LastAccess,
	}
}

func accessEventToJSON(ev types.AccessEvent) accessEventJSON {
	return accessEventJSON{
		ID:         ev.ID,
		IdentityID: ev.IdentityID,
		Method:     ev.Method,
		Timestamp:  ev.Timestamp,
		Success:    ev.Success,
		Message:    ev.Message,
		ImagePath:  ev.ImagePath,
	}
}

func unknownCaptureToJSON(c types.UnknownCapture) unknownCaptureJSON {
	return unknownCaptureJSON{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		ImagePath: c.ImagePath,
		Note:      c.Note,
	}
}
