package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog-admin-service/internal/matrix"
	"catalog-admin-service/internal/models"
	"catalog-admin-service/internal/payload"
)

const maxNotices = 20

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message produced by a background or remote failure
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Session is one open product or variant dialog. All fields except notices
// are guarded by mu.
type Session struct {
	mu          sync.Mutex
	id          uuid.UUID
	mode        payload.Mode
	productID   *int64
	fields      models.Fields
	images      []models.VariantImage
	original    *models.Product
	originalRaw json.RawMessage
	matrix      *matrix.Matrix
	blobs       map[string]*models.FileRef
	closed      bool

	noticeMu sync.Mutex
	notices  []Notice
}

func newSession(mode payload.Mode, m *matrix.Matrix) *Session {
	return &Session{
		id:     uuid.New(),
		mode:   mode,
		matrix: m,
		blobs:  make(map[string]*models.FileRef),
	}
}

// Blob returns a staged upload. Callers hold mu.
func (s *Session) Blob(id string) (*models.FileRef, bool) {
	f, ok := s.blobs[id]
	return f, ok
}

func (s *Session) stage(file models.FileRef) string {
	id := uuid.NewString()
	s.blobs[id] = &file
	return models.BlobURLPrefix + id
}

func (s *Session) notify(level NoticeLevel, format string, args ...interface{}) {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Message: fmt.Sprintf(format, args...), At: time.Now()})
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
}

func (s *Session) noticeList() []Notice {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	return append([]Notice(nil), s.notices...)
}

// SessionView is the session as returned to the dashboard
type SessionView struct {
	ID           uuid.UUID             `json:"id"`
	Mode         payload.Mode          `json:"mode"`
	ProductID    *int64                `json:"productId,omitempty"`
	Fields       models.Fields         `json:"fields"`
	Images       []models.VariantImage `json:"images"`
	Options      []matrix.RowState     `json:"options"`
	Variants     []models.VariantRow   `json:"variants"`
	Registration *matrix.Registration  `json:"registration,omitempty"`
	Notices      []Notice              `json:"notices,omitempty"`
}

// view renders the session. Callers hold mu.
func (s *Session) view() *SessionView {
	return &SessionView{
		ID:           s.id,
		Mode:         s.mode,
		ProductID:    s.productID,
		Fields:       s.fields.Clone(),
		Images:       append([]models.VariantImage(nil), s.images...),
		Options:      s.matrix.Rows(),
		Variants:     s.matrix.Variants(),
		Registration: s.matrix.Registration(),
		Notices:      s.noticeList(),
	}
}

// sessionSnapshot is the draft form of a session
type sessionSnapshot struct {
	Mode      payload.Mode               `json:"mode"`
	ProductID *int64                     `json:"productId,omitempty"`
	Fields    models.Fields              `json:"fields"`
	Images    []models.VariantImage      `json:"images,omitempty"`
	Original  json.RawMessage            `json:"original,omitempty"`
	Matrix    matrix.State               `json:"matrix"`
	Blobs     map[string]*models.FileRef `json:"blobs,omitempty"`
	Notices   []Notice                   `json:"notices,omitempty"`
}

// snapshot serializes the session. Callers hold mu.
func (s *Session) snapshot() ([]byte, error) {
	return json.Marshal(sessionSnapshot{
		Mode:      s.mode,
		ProductID: s.productID,
		Fields:    s.fields,
		Images:    s.images,
		Original:  s.originalRaw,
		Matrix:    s.matrix.Snapshot(),
		Blobs:     s.blobs,
		Notices:   s.noticeList(),
	})
}

func restoreSession(id uuid.UUID, data []byte) (*Session, error) {
	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}

	sess := newSession(snap.Mode, matrix.Restore(snap.Matrix))
	sess.id = id
	sess.productID = snap.ProductID
	sess.fields = snap.Fields
	sess.images = snap.Images
	sess.notices = snap.Notices
	if snap.Blobs != nil {
		sess.blobs = snap.Blobs
	}
	if len(snap.Original) > 0 {
		var product models.Product
		if err := json.Unmarshal(snap.Original, &product); err != nil {
			return nil, fmt.Errorf("failed to decode draft product: %w", err)
		}
		sess.original = &product
		sess.originalRaw = snap.Original
	}
	return sess, nil
}

// pruneBlobs drops staged uploads no image refers to any more. Callers hold mu.
func (s *Session) pruneBlobs() {
	used := make(map[string]bool, len(s.blobs))
	mark := func(images []models.VariantImage) {
		for _, img := range images {
			if img.IsBlob() {
				used[img.BlobID()] = true
			}
		}
	}
	mark(s.images)
	for _, row := range s.matrix.Variants() {
		mark(row.Images)
	}
	for id := range s.blobs {
		if !used[id] {
			delete(s.blobs, id)
		}
	}
}

// references reports whether the session edits productID or holds it as a
// variant row. Callers hold mu.
func (s *Session) references(productID int64) bool {
	if s.productID != nil && *s.productID == productID {
		return true
	}
	for _, row := range s.matrix.Variants() {
		if row.ID != nil && *row.ID == productID {
			return true
		}
	}
	return false
}
