package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-admin-service/internal/clients"
	"catalog-admin-service/internal/events"
	"catalog-admin-service/internal/matrix"
	"catalog-admin-service/internal/models"
	"catalog-admin-service/internal/payload"
	"catalog-admin-service/internal/repository"
)

// MockVocabulary is a mock implementation of Vocabulary
type MockVocabulary struct {
	mock.Mock
}

var _ Vocabulary = (*MockVocabulary)(nil)

func (m *MockVocabulary) ListOptionNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVocabulary) ListOptionValues(ctx context.Context, name string) ([]string, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVocabulary) RegisterOptionName(ctx context.Context, name string, done func(error)) {
	args := m.Called(ctx, name, done)
	if done != nil {
		done(args.Error(0))
	}
}

func (m *MockVocabulary) RegisterOptionValue(ctx context.Context, name, value string, done func(error)) {
	args := m.Called(ctx, name, value, done)
	if done != nil {
		done(args.Error(0))
	}
}

// MockProducts is a mock implementation of ProductsBackend
type MockProducts struct {
	mock.Mock
}

var _ ProductsBackend = (*MockProducts)(nil)

func (m *MockProducts) GetProduct(ctx context.Context, id int64) (*models.Product, json.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Product), args.Get(1).(json.RawMessage), args.Error(2)
}

func (m *MockProducts) CreateProduct(ctx context.Context, form *payload.Form) (*clients.SubmitResult, error) {
	args := m.Called(ctx, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.SubmitResult), args.Error(1)
}

func (m *MockProducts) UpdateProduct(ctx context.Context, id int64, form *payload.Form) (*clients.SubmitResult, error) {
	args := m.Called(ctx, id, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.SubmitResult), args.Error(1)
}

func (m *MockProducts) DeleteProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// MockEvents is a mock implementation of EventPublisher
type MockEvents struct {
	mock.Mock
}

var _ EventPublisher = (*MockEvents)(nil)

func (m *MockEvents) PublishProductCreated(ctx context.Context, change events.ProductChange) error {
	return m.Called(ctx, change).Error(0)
}

func (m *MockEvents) PublishProductUpdated(ctx context.Context, change events.ProductChange) error {
	return m.Called(ctx, change).Error(0)
}

func (m *MockEvents) PublishProductDeleted(ctx context.Context, change events.ProductChange) error {
	return m.Called(ctx, change).Error(0)
}

// memoryDrafts keeps drafts in a map
type memoryDrafts struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]models.MatrixDraft
}

var _ DraftStore = (*memoryDrafts)(nil)

func newMemoryDrafts() *memoryDrafts {
	return &memoryDrafts{drafts: make(map[uuid.UUID]models.MatrixDraft)}
}

func (d *memoryDrafts) SaveDraft(_ context.Context, draft *models.MatrixDraft) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drafts[draft.ID] = *draft
	return nil
}

func (d *memoryDrafts) GetDraft(_ context.Context, id uuid.UUID) (*models.MatrixDraft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	draft, ok := d.drafts[id]
	if !ok {
		return nil, repository.ErrDraftNotFound
	}
	return &draft, nil
}

func (d *memoryDrafts) DeleteDraft(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, id)
	return nil
}

const parentJSON = `{
	"id": 10,
	"name": "Tee",
	"sku": "TEE",
	"price": "20",
	"variants_options": [{"name": "Color", "value": "Red"}],
	"variants": [
		{"id": 11, "name": "Tee Red", "sku": "TEE-R", "qty": "1", "price": "20", "variant_options": [{"name": "Color", "value": "Red"}]},
		{"id": 12, "name": "Tee Blue", "sku": "TEE-B", "qty": "2", "price": "20", "variant_options": [{"name": "Color", "value": "Blue"}]}
	]
}`

func parentProduct(t *testing.T) (*models.Product, json.RawMessage) {
	t.Helper()
	var p models.Product
	require.NoError(t, json.Unmarshal([]byte(parentJSON), &p))
	return &p, json.RawMessage(parentJSON)
}

func newTestService(vocab *MockVocabulary, products *MockProducts, cfg SessionConfig) *SessionService {
	return NewSessionService(vocab, products, cfg)
}

func defaultVocab() *MockVocabulary {
	vocab := new(MockVocabulary)
	vocab.On("ListOptionNames", mock.Anything).Return([]string{"Color", "Size"}, nil)
	return vocab
}

func openEditParent(t *testing.T, svc *SessionService, vocab *MockVocabulary, products *MockProducts) *SessionView {
	t.Helper()
	product, raw := parentProduct(t)
	products.On("GetProduct", mock.Anything, int64(10)).Return(product, raw, nil)
	vocab.On("ListOptionValues", mock.Anything, "Color").Return([]string{"Red", "Blue", "Green"}, nil)

	id := int64(10)
	view, err := svc.Open(context.Background(), "edit_parent", &id)
	require.NoError(t, err)
	svc.Wait()
	return view
}

func TestOpen_InvalidMode(t *testing.T) {
	svc := newTestService(defaultVocab(), new(MockProducts), SessionConfig{})

	_, err := svc.Open(context.Background(), "duplicate", nil)

	assert.ErrorIs(t, err, payload.ErrInvalidMode)
}

func TestOpen_EditRequiresProductID(t *testing.T) {
	svc := newTestService(defaultVocab(), new(MockProducts), SessionConfig{})

	_, err := svc.Open(context.Background(), "edit_parent", nil)

	assert.ErrorIs(t, err, ErrProductIDRequired)
}

func TestOpen_EditParentHydratesAndFetchesValues(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	svc := newTestService(vocab, products, SessionConfig{})

	view := openEditParent(t, svc, vocab, products)

	require.Len(t, view.Options, 1)
	assert.Equal(t, "Color", view.Options[0].Name)
	assert.Equal(t, "Red", view.Options[0].Value)
	require.Len(t, view.Variants, 2)
	assert.Equal(t, "Blue", view.Variants[1].Option["Color"])

	choices, err := svc.OptionValueChoices(context.Background(), view.ID, view.Options[0].ID)
	require.NoError(t, err)
	assert.Contains(t, choices, "Green")
	assert.Equal(t, matrix.AddNewSentinel, choices[len(choices)-1])
	vocab.AssertExpectations(t)
}

func TestOpen_NamesFailureAddsNotice(t *testing.T) {
	vocab := new(MockVocabulary)
	vocab.On("ListOptionNames", mock.Anything).Return([]string{}, errors.New("down"))
	svc := newTestService(vocab, new(MockProducts), SessionConfig{})

	view, err := svc.Open(context.Background(), "create", nil)

	require.NoError(t, err)
	require.Len(t, view.Notices, 1)
	assert.Equal(t, NoticeWarning, view.Notices[0].Level)
}

func TestSetOptionName_StaleResponseDropped(t *testing.T) {
	vocab := defaultVocab()
	release := make(chan struct{})
	vocab.On("ListOptionValues", mock.Anything, "Color").
		Run(func(mock.Arguments) { <-release }).
		Return([]string{"Red"}, nil)
	vocab.On("ListOptionValues", mock.Anything, "Size").Return([]string{"S", "M"}, nil)
	svc := newTestService(vocab, new(MockProducts), SessionConfig{})
	ctx := context.Background()

	view, err := svc.Open(ctx, "create", nil)
	require.NoError(t, err)
	view, err = svc.AddOptionRow(ctx, view.ID)
	require.NoError(t, err)
	rowID := view.Options[0].ID

	_, err = svc.SetOptionName(ctx, view.ID, rowID, "Color")
	require.NoError(t, err)
	_, err = svc.SetOptionName(ctx, view.ID, rowID, "Size")
	require.NoError(t, err)
	close(release)
	svc.Wait()

	choices, err := svc.OptionValueChoices(ctx, view.ID, rowID)
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "M", matrix.AddNewSentinel}, choices)
}

func TestSetOptionName_FetchFailureLeavesEmptyListAndNotice(t *testing.T) {
	vocab := defaultVocab()
	vocab.On("ListOptionValues", mock.Anything, "Size").Return([]string{}, errors.New("timeout"))
	svc := newTestService(vocab, new(MockProducts), SessionConfig{})
	ctx := context.Background()

	view, _ := svc.Open(ctx, "create", nil)
	view, _ = svc.AddOptionRow(ctx, view.ID)
	rowID := view.Options[0].ID
	_, err := svc.SetOptionName(ctx, view.ID, rowID, "Size")
	require.NoError(t, err)
	svc.Wait()

	choices, err := svc.OptionValueChoices(ctx, view.ID, rowID)
	require.NoError(t, err)
	assert.Equal(t, []string{matrix.AddNewSentinel}, choices)

	view, err = svc.Get(ctx, view.ID)
	require.NoError(t, err)
	require.NotEmpty(t, view.Notices)
	assert.Contains(t, view.Notices[len(view.Notices)-1].Message, "Size")
}

func TestDeleteVariant_RemoteFailureRestoresRow(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	svc := newTestService(vocab, products, SessionConfig{})
	view := openEditParent(t, svc, vocab, products)
	products.On("DeleteProduct", mock.Anything, int64(11)).Return(errors.New("conflict"))

	_, err := svc.DeleteVariant(context.Background(), view.ID, 0)

	assert.ErrorIs(t, err, ErrVariantDeleteFailed)
	view, err = svc.Get(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, view.Variants, 2)
	assert.Equal(t, "Tee Red", view.Variants[0].Name)
	assert.Equal(t, NoticeError, view.Notices[len(view.Notices)-1].Level)
}

func TestDeleteVariant_SuccessPublishesEvent(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	publisher := new(MockEvents)
	svc := newTestService(vocab, products, SessionConfig{Events: publisher, StoreID: "store-1"})
	view := openEditParent(t, svc, vocab, products)
	products.On("DeleteProduct", mock.Anything, int64(12)).Return(nil)
	publisher.On("PublishProductDeleted", mock.Anything, mock.MatchedBy(func(c events.ProductChange) bool {
		return c.ProductID == 12 && c.StoreID == "store-1" && c.ParentID != nil && *c.ParentID == 10
	})).Return(nil)

	view, err := svc.DeleteVariant(context.Background(), view.ID, 1)

	require.NoError(t, err)
	require.Len(t, view.Variants, 1)
	publisher.AssertExpectations(t)
}

func TestDeleteVariant_PublishFailureStillDeletes(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	publisher := new(MockEvents)
	svc := newTestService(vocab, products, SessionConfig{Events: publisher})
	view := openEditParent(t, svc, vocab, products)
	products.On("DeleteProduct", mock.Anything, int64(11)).Return(nil)
	publisher.On("PublishProductDeleted", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	view, err := svc.DeleteVariant(context.Background(), view.ID, 0)

	require.NoError(t, err)
	require.Len(t, view.Variants, 1)
	assert.Equal(t, "Blue", view.Variants[0].Option["Color"])
	publisher.AssertExpectations(t)
}

func TestDeleteVariant_UnsavedRowSkipsRemote(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	svc := newTestService(vocab, products, SessionConfig{})
	ctx := context.Background()

	view, _ := svc.Open(ctx, "create", nil)
	view, _ = svc.AddVariant(ctx, view.ID, models.VariantFields{})
	view, err := svc.DeleteVariant(ctx, view.ID, 0)

	require.NoError(t, err)
	assert.Empty(t, view.Variants)
	products.AssertNotCalled(t, "DeleteProduct", mock.Anything, mock.Anything)
}

func TestSubmit_ValidationFailureKeepsSession(t *testing.T) {
	svc := newTestService(defaultVocab(), new(MockProducts), SessionConfig{})
	ctx := context.Background()
	view, _ := svc.Open(ctx, "create", nil)
	view, _ = svc.AddOptionRow(ctx, view.ID)

	_, err := svc.Submit(ctx, view.ID)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidationFailed)
	require.Len(t, verr.Errors, 2)
	assert.Equal(t, "name", verr.Errors[0].Field)
	assert.Equal(t, "value", verr.Errors[1].Field)

	view, err = svc.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, matrix.MsgNameRequired, view.Options[0].Errors.Name)
}

func TestSubmit_CreateSendsFormAndCloses(t *testing.T) {
	vocab := defaultVocab()
	vocab.On("ListOptionValues", mock.Anything, "Color").Return([]string{"Red"}, nil)
	products := new(MockProducts)
	publisher := new(MockEvents)
	drafts := newMemoryDrafts()
	svc := newTestService(vocab, products, SessionConfig{Events: publisher, Drafts: drafts})
	ctx := context.Background()

	view, _ := svc.Open(ctx, "create", nil)
	id := view.ID
	_, err := svc.UpdateFields(ctx, id, map[string]string{"name": "Tee", "price": "20"}, nil)
	require.NoError(t, err)
	view, _ = svc.AddOptionRow(ctx, id)
	rowID := view.Options[0].ID
	_, err = svc.SetOptionName(ctx, id, rowID, "Color")
	require.NoError(t, err)
	svc.Wait()
	_, err = svc.SetOptionValue(ctx, id, rowID, "Red")
	require.NoError(t, err)
	_, err = svc.AddVariant(ctx, id, models.VariantFields{Name: strPtr("Tee Red")})
	require.NoError(t, err)
	_, err = svc.SetVariantOption(ctx, id, 0, "Color", "Red")
	require.NoError(t, err)

	var sent *payload.Form
	productID := int64(99)
	products.On("CreateProduct", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*payload.Form) }).
		Return(&clients.SubmitResult{ProductID: &productID}, nil)
	publisher.On("PublishProductCreated", mock.Anything, mock.MatchedBy(func(c events.ProductChange) bool {
		return c.ProductID == 99 && c.Name == "Tee" && c.VariantCount == 1
	})).Return(nil)

	outcome, err := svc.Submit(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, int64(99), *outcome.ProductID)
	require.NotNil(t, sent)
	assert.False(t, sent.Has("variants_options[0][name]"))
	option, _ := sent.Get("variant[0][option][Color]")
	assert.Equal(t, "Red", option)

	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = drafts.GetDraft(ctx, id)
	assert.ErrorIs(t, err, repository.ErrDraftNotFound)
	publisher.AssertExpectations(t)
}

func TestSubmit_RemoteFailureKeepsSession(t *testing.T) {
	products := new(MockProducts)
	products.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, errors.New("502"))
	svc := newTestService(defaultVocab(), products, SessionConfig{})
	ctx := context.Background()
	view, _ := svc.Open(ctx, "create", nil)

	_, err := svc.Submit(ctx, view.ID)

	assert.ErrorIs(t, err, ErrSubmitFailed)
	_, err = svc.Get(ctx, view.ID)
	assert.NoError(t, err)
}

func TestSubmit_EditParentSendsOnlyChanges(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	svc := newTestService(vocab, products, SessionConfig{})
	view := openEditParent(t, svc, vocab, products)
	ctx := context.Background()

	_, err := svc.UpdateVariant(ctx, view.ID, 0, models.VariantFields{Qty: strPtr("7")})
	require.NoError(t, err)

	var sent *payload.Form
	products.On("UpdateProduct", mock.Anything, int64(10), mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*payload.Form) }).
		Return(&clients.SubmitResult{}, nil)

	outcome, err := svc.Submit(ctx, view.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(10), *outcome.ProductID)
	assert.False(t, sent.Has("name"))
	assert.False(t, sent.Has("variants_options[0][name]"))
	qty, _ := sent.Get("variant[0][qty]")
	assert.Equal(t, "7", qty)
}

func TestConfirmRegistration_RemoteFailureKeepsLocalEntry(t *testing.T) {
	vocab := defaultVocab()
	vocab.On("RegisterOptionName", mock.Anything, "Pattern", mock.Anything).Return(errors.New("forbidden"))
	vocab.On("ListOptionValues", mock.Anything, "Pattern").Return([]string{}, nil)
	svc := newTestService(vocab, new(MockProducts), SessionConfig{})
	ctx := context.Background()

	view, _ := svc.Open(ctx, "create", nil)
	view, _ = svc.AddOptionRow(ctx, view.ID)
	rowID := view.Options[0].ID
	view, err := svc.SetOptionName(ctx, view.ID, rowID, matrix.AddNewSentinel)
	require.NoError(t, err)
	require.NotNil(t, view.Registration)

	view, err = svc.ConfirmRegistration(ctx, view.ID, "  Pattern ")
	require.NoError(t, err)
	svc.Wait()

	assert.Nil(t, view.Registration)
	assert.Equal(t, "Pattern", view.Options[0].Name)
	require.NotEmpty(t, view.Notices)
	assert.Contains(t, view.Notices[len(view.Notices)-1].Message, "Pattern")
	vocab.AssertExpectations(t)
}

func TestConfirmRegistration_DuplicateStaysOpen(t *testing.T) {
	svc := newTestService(defaultVocab(), new(MockProducts), SessionConfig{})
	ctx := context.Background()
	view, _ := svc.Open(ctx, "create", nil)
	view, _ = svc.AddOptionRow(ctx, view.ID)
	_, err := svc.OpenRegistration(ctx, view.ID, matrix.Registration{Type: matrix.RegistrationOption, RowID: view.Options[0].ID})
	require.NoError(t, err)

	_, err = svc.ConfirmRegistration(ctx, view.ID, "size")

	assert.ErrorIs(t, err, matrix.ErrRegistrationDuplicate)
	view, _ = svc.Get(ctx, view.ID)
	assert.NotNil(t, view.Registration)
}

func TestSession_RestoredFromDraft(t *testing.T) {
	vocab := defaultVocab()
	vocab.On("ListOptionValues", mock.Anything, "Color").Return([]string{"Red"}, nil)
	drafts := newMemoryDrafts()
	ctx := context.Background()

	first := newTestService(vocab, new(MockProducts), SessionConfig{Drafts: drafts})
	view, _ := first.Open(ctx, "create", nil)
	_, err := first.UpdateFields(ctx, view.ID, map[string]string{"name": "Tee"}, nil)
	require.NoError(t, err)
	view, _ = first.AddOptionRow(ctx, view.ID)
	_, err = first.SetOptionName(ctx, view.ID, view.Options[0].ID, "Color")
	require.NoError(t, err)
	first.Wait()
	_, err = first.AddImage(ctx, view.ID, models.FileRef{Filename: "a.png", Data: []byte("png")}, models.ImageTypeMain)
	require.NoError(t, err)

	second := newTestService(vocab, new(MockProducts), SessionConfig{Drafts: drafts})
	restored, err := second.Get(ctx, view.ID)
	require.NoError(t, err)
	second.Wait()

	name, _ := restored.Fields.Get("name")
	assert.Equal(t, "Tee", name)
	assert.Equal(t, "Color", restored.Options[0].Name)
	require.Len(t, restored.Images, 1)
	assert.True(t, restored.Images[0].IsBlob())
	assert.Equal(t, 1, second.Len())
}

func TestGet_UnknownSession(t *testing.T) {
	svc := newTestService(defaultVocab(), new(MockProducts), SessionConfig{Drafts: newMemoryDrafts()})

	_, err := svc.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAddImage_RejectedInVariantDialog(t *testing.T) {
	vocab := defaultVocab()
	vocab.On("ListOptionValues", mock.Anything, mock.Anything).Return([]string{}, nil)
	products := new(MockProducts)
	child, raw := childProduct(t)
	products.On("GetProduct", mock.Anything, int64(11)).Return(child, raw, nil)
	svc := newTestService(vocab, products, SessionConfig{})
	ctx := context.Background()

	id := int64(11)
	view, err := svc.Open(ctx, "edit_variant", &id)
	require.NoError(t, err)
	svc.Wait()
	require.Len(t, view.Variants, 1)

	_, err = svc.AddImage(ctx, view.ID, models.FileRef{Filename: "a.png"}, models.ImageTypeAlt)
	assert.ErrorIs(t, err, ErrImagesOnVariant)

	view, err = svc.AddVariantImage(ctx, view.ID, 0, models.FileRef{Filename: "a.png"}, models.ImageTypeAlt)
	require.NoError(t, err)
	assert.Len(t, view.Variants[0].Images, 1)
}

const childJSON = `{"id": 11, "parent_id": 10, "name": "Tee Red", "price": "20", "rrp": "30",
	"variants_options": [{"name": "Color", "value": "Red"}]}`

func childProduct(t *testing.T) (*models.Product, json.RawMessage) {
	t.Helper()
	var p models.Product
	require.NoError(t, json.Unmarshal([]byte(childJSON), &p))
	return &p, json.RawMessage(childJSON)
}

func TestOpen_EditParentRejectsVariantRecord(t *testing.T) {
	products := new(MockProducts)
	child, raw := childProduct(t)
	products.On("GetProduct", mock.Anything, int64(11)).Return(child, raw, nil)
	svc := newTestService(defaultVocab(), products, SessionConfig{})

	id := int64(11)
	_, err := svc.Open(context.Background(), "edit_parent", &id)

	assert.ErrorIs(t, err, ErrVariantRecord)
	assert.Equal(t, 0, svc.Len())
}

func TestSubmit_EditVariantSendsDialogEdits(t *testing.T) {
	vocab := defaultVocab()
	vocab.On("ListOptionValues", mock.Anything, "Color").Return([]string{"Red", "Blue"}, nil)
	vocab.On("ListOptionValues", mock.Anything, "Size").Return([]string{"S", "L"}, nil)
	products := new(MockProducts)
	child, raw := childProduct(t)
	products.On("GetProduct", mock.Anything, int64(11)).Return(child, raw, nil)
	svc := newTestService(vocab, products, SessionConfig{})
	ctx := context.Background()

	productID := int64(11)
	view, err := svc.Open(ctx, "edit_variant", &productID)
	require.NoError(t, err)
	svc.Wait()
	id := view.ID
	colorRow := view.Options[0].ID

	_, err = svc.SetOptionValue(ctx, id, colorRow, "Blue")
	require.NoError(t, err)
	view, err = svc.AddOptionRow(ctx, id)
	require.NoError(t, err)
	sizeRow := view.Options[1].ID
	_, err = svc.SetOptionName(ctx, id, sizeRow, "Size")
	require.NoError(t, err)
	svc.Wait()
	_, err = svc.SetOptionValue(ctx, id, sizeRow, "L")
	require.NoError(t, err)
	_, err = svc.UpdateFields(ctx, id, map[string]string{"price": "25", "rrp": "35"}, nil)
	require.NoError(t, err)

	var sent *payload.Form
	products.On("UpdateProduct", mock.Anything, int64(11), mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*payload.Form) }).
		Return(&clients.SubmitResult{}, nil)

	_, err = svc.Submit(ctx, id)

	require.NoError(t, err)
	require.NotNil(t, sent)
	color, _ := sent.Get("variant[0][option][Color]")
	assert.Equal(t, "Blue", color)
	size, _ := sent.Get("variant[0][option][Size]")
	assert.Equal(t, "L", size)
	price, _ := sent.Get("variant[0][price]")
	assert.Equal(t, "25", price)
	rrp, _ := sent.Get("variant[0][rrp]")
	assert.Equal(t, "35", rrp)
	assert.False(t, sent.Has("price"))
	assert.False(t, sent.Has("rrp"))
	parent, _ := sent.Get("parent_id")
	assert.Equal(t, "10", parent)
}

func strPtr(s string) *string { return &s }

func TestNotifyProductChanged_WarnsSessionsOnThatProduct(t *testing.T) {
	vocab := defaultVocab()
	products := new(MockProducts)
	svc := newTestService(vocab, products, SessionConfig{})
	view := openEditParent(t, svc, vocab, products)
	other, err := svc.Open(context.Background(), "create", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.NotifyProductChanged(12, true))
	assert.Equal(t, 0, svc.NotifyProductChanged(77, false))

	view, err = svc.Get(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, NoticeError, view.Notices[len(view.Notices)-1].Level)
	other, err = svc.Get(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Notices)
}
