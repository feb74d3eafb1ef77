package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-admin-service/internal/clients"
	"catalog-admin-service/internal/events"
	"catalog-admin-service/internal/matrix"
	"catalog-admin-service/internal/models"
	"catalog-admin-service/internal/payload"
	"catalog-admin-service/internal/repository"
)

const defaultFetchTimeout = 15 * time.Second

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrProductIDRequired   = errors.New("productId is required for edit modes")
	ErrVariantRecord       = errors.New("product is a variant; open it in the variant dialog")
	ErrImagesOnVariant     = errors.New("the variant dialog keeps its images on the variant row")
	ErrSingleVariant       = errors.New("the variant dialog edits exactly one variant")
	ErrVariantDeleteFailed = errors.New("variant could not be deleted")
	ErrSubmitFailed        = errors.New("product could not be saved")
	ErrValidationFailed    = errors.New("option rows are incomplete")
)

// ValidationError carries the per-field errors of a rejected submit
type ValidationError struct {
	Errors []matrix.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d field error(s)", ErrValidationFailed, len(e.Errors))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Vocabulary is the option name and value catalogue
type Vocabulary interface {
	ListOptionNames(ctx context.Context) ([]string, error)
	ListOptionValues(ctx context.Context, name string) ([]string, error)
	RegisterOptionName(ctx context.Context, name string, done func(error))
	RegisterOptionValue(ctx context.Context, name, value string, done func(error))
}

// ProductsBackend is the commerce API products resource
type ProductsBackend interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, json.RawMessage, error)
	CreateProduct(ctx context.Context, form *payload.Form) (*clients.SubmitResult, error)
	UpdateProduct(ctx context.Context, id int64, form *payload.Form) (*clients.SubmitResult, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// DraftStore persists session snapshots
type DraftStore interface {
	SaveDraft(ctx context.Context, draft *models.MatrixDraft) error
	GetDraft(ctx context.Context, id uuid.UUID) (*models.MatrixDraft, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
}

// EventPublisher announces saved and deleted products
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, change events.ProductChange) error
	PublishProductUpdated(ctx context.Context, change events.ProductChange) error
	PublishProductDeleted(ctx context.Context, change events.ProductChange) error
}

type SessionConfig struct {
	// Drafts and Events are optional
	Drafts       DraftStore
	Events       EventPublisher
	Fetcher      payload.ImageFetcher
	StoreID      string
	MaxAltImages int
	FetchTimeout time.Duration
	Logger       *logrus.Entry
}

// SubmitOutcome is the result of a successful submit
type SubmitOutcome struct {
	ProductID *int64          `json:"productId,omitempty"`
	Mode      payload.Mode    `json:"mode"`
	Fields    []string        `json:"fields"`
	Response  json.RawMessage `json:"response,omitempty"`
}

type actorKey struct{}

// WithActor records the staff member acting on a session
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// SessionService owns the open product dialogs
type SessionService struct {
	vocab        Vocabulary
	products     ProductsBackend
	drafts       DraftStore
	events       EventPublisher
	fetcher      payload.ImageFetcher
	storeID      string
	maxAltImages int
	fetchTimeout time.Duration
	logger       *logrus.Entry

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	fetches  sync.WaitGroup
}

func NewSessionService(vocab Vocabulary, products ProductsBackend, cfg SessionConfig) *SessionService {
	if cfg.MaxAltImages <= 0 {
		cfg.MaxAltImages = models.DefaultMaxAltImages
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &SessionService{
		vocab:        vocab,
		products:     products,
		drafts:       cfg.Drafts,
		events:       cfg.Events,
		fetcher:      cfg.Fetcher,
		storeID:      cfg.StoreID,
		maxAltImages: cfg.MaxAltImages,
		fetchTimeout: cfg.FetchTimeout,
		logger:       logger.WithField("component", "sessions"),
		sessions:     make(map[uuid.UUID]*Session),
	}
}

// Open starts a dialog. Edit modes load the product and hydrate the matrix from it.
func (s *SessionService) Open(ctx context.Context, modeName string, productID *int64) (*SessionView, error) {
	mode, err := payload.ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	if mode.IsEdit() && productID == nil {
		return nil, ErrProductIDRequired
	}

	names, namesErr := s.vocab.ListOptionNames(ctx)
	sess := newSession(mode, matrix.New(matrix.NewVocabulary(names)))
	if namesErr != nil {
		sess.notify(NoticeWarning, "Option names could not be loaded")
	}

	if mode.IsEdit() {
		product, raw, err := s.products.GetProduct(ctx, *productID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %d: %w", *productID, err)
		}
		if mode == payload.ModeEditParent && product.IsVariant() {
			return nil, ErrVariantRecord
		}
		id := *productID
		sess.productID = &id
		sess.original = product
		sess.originalRaw = raw
		sess.fields = product.Fields.Clone()

		if mode == payload.ModeEditParent {
			sess.matrix.Hydrate(product.VariantsOptions, product.VariantRows())
			for _, img := range product.Images {
				sess.images = append(sess.images, img.ToVariantImage())
			}
		} else {
			sess.matrix.Hydrate(product.VariantsOptions, []models.VariantRow{product.AsVariantRow()})
		}
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.startFetches(ctx, sess, sess.matrix.RefreshAll())
	s.persist(ctx, sess)

	s.logger.WithFields(logrus.Fields{
		"session_id": sess.id,
		"mode":       mode,
	}).Info("Session opened")

	return sess.view(), nil
}

// Get returns the current state of a session
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrSessionNotFound
	}
	return sess.view(), nil
}

// Discard closes a session without saving
func (s *SessionService) Discard(ctx context.Context, id uuid.UUID) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.close(ctx, sess)
	return nil
}

// UpdateFields sets and removes top-level product fields
func (s *SessionService) UpdateFields(ctx context.Context, id uuid.UUID, set map[string]string, remove []string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.fields.Merge(set)
		for _, key := range remove {
			sess.fields.Delete(key)
		}
		return nil
	})
}

// AddImage stages an uploaded product image and returns it as a blob URL
func (s *SessionService) AddImage(ctx context.Context, id uuid.UUID, file models.FileRef, imageType models.ImageType) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if sess.mode == payload.ModeEditVariant {
			return ErrImagesOnVariant
		}
		if imageType != models.ImageTypeMain && imageType != models.ImageTypeAlt {
			return models.ErrInvalidImageType
		}
		images, err := models.AddImage(sess.images, models.VariantImage{
			URL:  sess.stage(file),
			Type: imageType,
		}, s.maxAltImages)
		if err != nil {
			return err
		}
		sess.images = images
		sess.pruneBlobs()
		return nil
	})
}

// RemoveImage drops a product image by position
func (s *SessionService) RemoveImage(ctx context.Context, id uuid.UUID, index int) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		images, err := models.RemoveImage(sess.images, index)
		if err != nil {
			return err
		}
		sess.images = images
		sess.pruneBlobs()
		return nil
	})
}

func (s *SessionService) AddOptionRow(ctx context.Context, id uuid.UUID) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.matrix.AddOptionRow()
		return nil
	})
}

func (s *SessionService) RemoveOptionRow(ctx context.Context, id uuid.UUID, rowID string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.matrix.RemoveOptionRow(rowID)
	})
}

// SetOptionName names an option row and fetches the values for the new name
func (s *SessionService) SetOptionName(ctx context.Context, id uuid.UUID, rowID, name string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		fetch, err := sess.matrix.SetOptionName(rowID, name)
		if fetch != nil {
			s.startFetches(ctx, sess, []matrix.ValueFetch{*fetch})
		}
		return err
	})
}

func (s *SessionService) SetOptionValue(ctx context.Context, id uuid.UUID, rowID, value string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.matrix.SetOptionValue(rowID, value)
	})
}

func (s *SessionService) OptionNameChoices(ctx context.Context, id uuid.UUID, rowID string) ([]string, error) {
	return s.read(ctx, id, func(sess *Session) ([]string, error) {
		return sess.matrix.OptionNameChoices(rowID)
	})
}

func (s *SessionService) OptionValueChoices(ctx context.Context, id uuid.UUID, rowID string) ([]string, error) {
	return s.read(ctx, id, func(sess *Session) ([]string, error) {
		return sess.matrix.OptionValueChoices(rowID)
	})
}

func (s *SessionService) VariantValueChoices(ctx context.Context, id uuid.UUID, index int, name string) ([]string, error) {
	return s.read(ctx, id, func(sess *Session) ([]string, error) {
		return sess.matrix.VariantValueChoices(index, name)
	})
}

func (s *SessionService) AddVariant(ctx context.Context, id uuid.UUID, fields models.VariantFields) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if sess.mode == payload.ModeEditVariant {
			return ErrSingleVariant
		}
		sess.matrix.AddVariantRow(fields)
		return nil
	})
}

func (s *SessionService) UpdateVariant(ctx context.Context, id uuid.UUID, index int, fields models.VariantFields) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.matrix.UpdateVariantRow(index, fields)
	})
}

func (s *SessionService) SetVariantOption(ctx context.Context, id uuid.UUID, index int, name, value string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.matrix.SetVariantOption(index, name, value)
	})
}

// DeleteVariant removes a variant row. Persisted variants are deleted remotely
// as well; when that fails the row is put back where it was.
func (s *SessionService) DeleteVariant(ctx context.Context, id uuid.UUID, index int) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if sess.mode == payload.ModeEditVariant {
			return ErrSingleVariant
		}
		row, err := sess.matrix.DeleteVariantRow(index)
		if err != nil {
			return err
		}
		if row.ID == nil {
			return nil
		}

		if err := s.products.DeleteProduct(ctx, *row.ID); err != nil {
			sess.matrix.RestoreVariantRow(index, row)
			sess.notify(NoticeError, "Variant %q could not be deleted", row.Name)
			s.logger.WithError(err).WithFields(logrus.Fields{
				"session_id": sess.id,
				"variant_id": *row.ID,
			}).Error("Failed to delete variant, row restored")
			return fmt.Errorf("%w: %v", ErrVariantDeleteFailed, err)
		}

		change := events.ProductChange{
			StoreID:   s.storeID,
			ProductID: *row.ID,
			ParentID:  sess.productID,
			Name:      row.Name,
			SKU:       row.SKU,
			Price:     row.Price,
			ActorID:   actorFromContext(ctx),
		}
		if s.events != nil {
			if err := s.events.PublishProductDeleted(ctx, change); err != nil {
				s.logger.WithError(err).Warn("Failed to publish product event")
			}
		}
		return nil
	})
}

func (s *SessionService) AddVariantImage(ctx context.Context, id uuid.UUID, index int, file models.FileRef, imageType models.ImageType) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if imageType != models.ImageTypeMain && imageType != models.ImageTypeAlt {
			return models.ErrInvalidImageType
		}
		err := sess.matrix.AddVariantImage(index, models.VariantImage{
			URL:  sess.stage(file),
			Type: imageType,
		}, s.maxAltImages)
		sess.pruneBlobs()
		return err
	})
}

func (s *SessionService) RemoveVariantImage(ctx context.Context, id uuid.UUID, index, imageIndex int) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if err := sess.matrix.RemoveVariantImage(index, imageIndex); err != nil {
			return err
		}
		sess.pruneBlobs()
		return nil
	})
}

func (s *SessionService) OpenRegistration(ctx context.Context, id uuid.UUID, reg matrix.Registration) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.matrix.OpenRegistration(reg)
	})
}

func (s *SessionService) CancelRegistration(ctx context.Context, id uuid.UUID) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.matrix.CancelRegistration()
		return nil
	})
}

// ConfirmRegistration adds the typed entry locally, selects it, and stores it
// in the remote vocabulary in the background. A remote failure only produces a
// notice; the local entry stays for the rest of the session.
func (s *SessionService) ConfirmRegistration(ctx context.Context, id uuid.UUID, input string) (*SessionView, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		registered, err := sess.matrix.ConfirmRegistration(input)
		if err != nil {
			return err
		}

		switch registered.Type {
		case matrix.RegistrationOption:
			name := registered.OptionName
			s.vocab.RegisterOptionName(ctx, name, func(err error) {
				if err != nil {
					sess.notify(NoticeWarning, "Option %q could not be saved and is only available in this dialog", name)
				}
			})
		case matrix.RegistrationValue:
			name, value := registered.OptionName, registered.Value
			s.vocab.RegisterOptionValue(ctx, name, value, func(err error) {
				if err != nil {
					sess.notify(NoticeWarning, "Value %q for %q could not be saved and is only available in this dialog", value, name)
				}
			})
		}

		if registered.Fetch != nil {
			s.startFetches(ctx, sess, []matrix.ValueFetch{*registered.Fetch})
		}
		return nil
	})
}

// Validate runs the submit checks without submitting
func (s *SessionService) Validate(ctx context.Context, id uuid.UUID) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrSessionNotFound
	}

	errs, ok := sess.matrix.ValidateBeforeSubmit()
	s.persist(ctx, sess)
	if !ok {
		return sess.view(), &ValidationError{Errors: errs}
	}
	return sess.view(), nil
}

// Submit validates the option rows, builds the multipart payload and sends it.
// The session is closed on success and kept for another attempt on failure.
func (s *SessionService) Submit(ctx context.Context, id uuid.UUID) (*SubmitOutcome, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrSessionNotFound
	}

	if errs, ok := sess.matrix.ValidateBeforeSubmit(); !ok {
		s.persist(ctx, sess)
		return nil, &ValidationError{Errors: errs}
	}
	if pruned := sess.matrix.PruneOrphanedAssignments(); pruned > 0 {
		s.logger.WithFields(logrus.Fields{
			"session_id": sess.id,
			"pruned":     pruned,
		}).Debug("Pruned variant assignments without an option row")
	}

	resolver := payload.NewResolver(sess, s.fetcher)
	images, err := resolver.Resolve(ctx, sess.images)
	if err != nil {
		return nil, err
	}
	variants, err := resolver.ResolveVariants(ctx, sess.matrix.Variants())
	if err != nil {
		return nil, err
	}

	form, err := payload.Build(payload.Input{
		Mode:     sess.mode,
		Fields:   sess.fields,
		Original: sess.original,
		Options:  sess.matrix.Options(),
		Variants: variants,
		Images:   images,
	})
	if err != nil {
		return nil, err
	}

	var result *clients.SubmitResult
	if sess.mode == payload.ModeCreate {
		result, err = s.products.CreateProduct(ctx, form)
	} else {
		result, err = s.products.UpdateProduct(ctx, *sess.productID, form)
	}
	if err != nil {
		sess.notify(NoticeError, "Product could not be saved")
		s.persist(ctx, sess)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": sess.id,
			"mode":       sess.mode,
		}).Error("Failed to submit product")
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	outcome := &SubmitOutcome{
		ProductID: result.ProductID,
		Mode:      sess.mode,
		Fields:    form.Keys(),
		Response:  result.Raw,
	}
	if outcome.ProductID == nil {
		outcome.ProductID = sess.productID
	}

	s.publishSubmit(ctx, sess, outcome, form)
	s.close(ctx, sess)

	s.logger.WithFields(logrus.Fields{
		"session_id": sess.id,
		"mode":       sess.mode,
		"parts":      form.Len(),
	}).Info("Product submitted")

	return outcome, nil
}

func (s *SessionService) publishSubmit(ctx context.Context, sess *Session, outcome *SubmitOutcome, form *payload.Form) {
	if s.events == nil || outcome.ProductID == nil {
		return
	}

	change := events.ProductChange{
		StoreID:      s.storeID,
		ProductID:    *outcome.ProductID,
		ActorID:      actorFromContext(ctx),
		VariantCount: len(sess.matrix.Variants()),
	}
	change.Name, _ = sess.fields.Get("name")
	change.SKU, _ = sess.fields.Get("sku")
	change.Price, _ = sess.fields.Get("price")
	if sess.original != nil {
		change.ParentID = sess.original.ParentID
	}
	for _, key := range form.Keys() {
		if key == "id" || key == "parent_id" || strings.Contains(key, "[") {
			continue
		}
		change.ChangedFields = append(change.ChangedFields, key)
	}

	var err error
	if sess.mode == payload.ModeCreate {
		err = s.events.PublishProductCreated(ctx, change)
	} else {
		err = s.events.PublishProductUpdated(ctx, change)
	}
	if err != nil {
		s.logger.WithError(err).Warn("Failed to publish product event")
	}
}

// NotifyProductChanged warns every open session built on productID, either as
// the edited product or as one of its variant rows. It returns how many
// sessions were warned.
func (s *SessionService) NotifyProductChanged(productID int64, deleted bool) int {
	s.mu.RLock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.RUnlock()

	notified := 0
	for _, sess := range open {
		sess.mu.Lock()
		if !sess.closed && sess.references(productID) {
			if deleted {
				sess.notify(NoticeError, "Product %d was deleted by someone else", productID)
			} else {
				sess.notify(NoticeWarning, "Product %d was changed by someone else; saving will overwrite those changes", productID)
			}
			notified++
		}
		sess.mu.Unlock()
	}
	return notified
}

// Wait blocks until every in-flight value fetch has been applied or dropped
func (s *SessionService) Wait() {
	s.fetches.Wait()
}

// Len returns the number of sessions held in memory
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) mutate(ctx context.Context, id uuid.UUID, fn func(sess *Session) error) (*SessionView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrSessionNotFound
	}

	err = fn(sess)
	s.persist(ctx, sess)
	if err != nil {
		return nil, err
	}
	return sess.view(), nil
}

func (s *SessionService) read(ctx context.Context, id uuid.UUID, fn func(sess *Session) ([]string, error)) ([]string, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrSessionNotFound
	}
	return fn(sess)
}

// session returns an in-memory session, restoring it from its draft when the
// service was restarted since it was opened.
func (s *SessionService) session(ctx context.Context, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}
	if s.drafts == nil {
		return nil, ErrSessionNotFound
	}

	draft, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDraftNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	restored, err := restoreSession(id, draft.Snapshot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[id] = restored
	s.mu.Unlock()

	restored.mu.Lock()
	s.startFetches(ctx, restored, restored.matrix.RefreshMissing())
	restored.mu.Unlock()

	s.logger.WithField("session_id", id).Info("Session restored from draft")
	return restored, nil
}

// startFetches loads option values in the background. Responses are applied
// under the session lock; ones that no longer match the row are dropped.
// Callers hold sess.mu.
func (s *SessionService) startFetches(ctx context.Context, sess *Session, fetches []matrix.ValueFetch) {
	for _, fetch := range fetches {
		fetch := fetch
		s.fetches.Add(1)
		go func() {
			defer s.fetches.Done()
			fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
			defer cancel()

			values, err := s.vocab.ListOptionValues(fetchCtx, fetch.Name)
			if err != nil {
				values = nil
			}

			sess.mu.Lock()
			defer sess.mu.Unlock()
			if !sess.matrix.ApplyOptionValues(fetch, values) {
				s.logger.WithFields(logrus.Fields{
					"session_id":  sess.id,
					"option_name": fetch.Name,
				}).Debug("Dropped stale option values")
				return
			}
			if err != nil {
				sess.notify(NoticeWarning, "Values for %q could not be loaded", fetch.Name)
			}
		}()
	}
}

// persist saves the session draft. Failures are logged only. Callers hold sess.mu.
func (s *SessionService) persist(ctx context.Context, sess *Session) {
	if s.drafts == nil || sess.closed {
		return
	}
	snapshot, err := sess.snapshot()
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sess.id).Warn("Failed to encode draft")
		return
	}
	draft := &models.MatrixDraft{
		ID:        sess.id,
		Mode:      string(sess.mode),
		ProductID: sess.productID,
		Snapshot:  snapshot,
	}
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		s.logger.WithError(err).WithField("session_id", sess.id).Warn("Failed to save draft")
	}
}

// close forgets the session and its draft. Callers hold sess.mu.
func (s *SessionService) close(ctx context.Context, sess *Session) {
	sess.closed = true
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	if s.drafts != nil {
		if err := s.drafts.DeleteDraft(ctx, sess.id); err != nil {
			s.logger.WithError(err).WithField("session_id", sess.id).Warn("Failed to delete draft")
		}
	}
}
