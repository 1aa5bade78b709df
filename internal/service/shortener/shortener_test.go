package shortener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Popolzen/shortlink/internal/access"
	"github.com/Popolzen/shortlink/internal/audit"
	cachemocks "github.com/Popolzen/shortlink/internal/cache/mocks"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/repository/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// === Тесты с gomock (взаимодействие с репозиторием и кэшем) ===

func newMockService(t *testing.T) (*URLService, *mocks.MockRepository, *cachemocks.MockCache) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	c := cachemocks.NewMockCache(ctrl)
	return NewURLService(repo, c, nil, zap.NewNop().Sugar(), Options{}), repo, c
}

func TestCreate_Success(t *testing.T) {
	service, repo, _ := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, gomock.Any()).Return(nil, model.ErrNotFound)
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, l *model.ShortLink) (*model.ShortLink, error) {
		return l, nil
	})

	link, err := service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "https://example.com"})

	require.NoError(t, err)
	assert.Len(t, link.ShortCode, 6)
	assert.Nil(t, link.OwnerID)
}

func TestCreate_RetryOnCollision(t *testing.T) {
	service, repo, _ := newMockService(t)
	ctx := context.Background()

	codes := []string{"aaaaaa", "bbbbbb", "cccccc"}
	service.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	gomock.InOrder(
		// Первый код уже занят
		repo.EXPECT().FindByCode(ctx, "aaaaaa").Return(&model.ShortLink{ShortCode: "aaaaaa"}, nil),
		// Второй заняли между проверкой и вставкой
		repo.EXPECT().FindByCode(ctx, "bbbbbb").Return(nil, model.ErrNotFound),
		repo.EXPECT().Create(ctx, gomock.Any()).Return(nil, model.ErrCodeTaken),
		repo.EXPECT().FindByCode(ctx, "cccccc").Return(nil, model.ErrNotFound),
		repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, l *model.ShortLink) (*model.ShortLink, error) {
			return l, nil
		}),
	)

	link, err := service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "https://example.com"})

	require.NoError(t, err)
	assert.Equal(t, "cccccc", link.ShortCode)
}

func TestCreate_CodeSpaceExhausted(t *testing.T) {
	service, repo, _ := newMockService(t)
	service.opts.MaxCodeAttempts = 3
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, gomock.Any()).Return(&model.ShortLink{}, nil).Times(3)

	_, err := service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "https://example.com"})

	assert.ErrorIs(t, err, model.ErrCodeSpaceExhausted)
}

func TestCreate_StoreError(t *testing.T) {
	service, repo, _ := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, gomock.Any()).Return(nil, model.ErrNotFound)
	repo.EXPECT().Create(ctx, gomock.Any()).Return(nil, errors.New("db error"))

	_, err := service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "https://example.com"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestCreate_CustomCodeTaken(t *testing.T) {
	service, repo, _ := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, "taken").Return(&model.ShortLink{ShortCode: "taken"}, nil)

	_, err := service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "https://example.com", CustomCode: "taken"})

	assert.ErrorIs(t, err, model.ErrCodeTaken)
}

func TestCreate_ValidationBeforeStore(t *testing.T) {
	service, _, _ := newMockService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, access.Actor{}, CreateInput{})
	assert.ErrorIs(t, err, model.ErrBadRequest)

	_, err = service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "ftp://example.com"})
	assert.ErrorIs(t, err, model.ErrInvalidURL)

	_, err = service.Create(ctx, access.Actor{}, CreateInput{OriginalURL: "https://example.com", CustomCode: "bad code!"})
	assert.ErrorIs(t, err, model.ErrInvalidCode)

	_, err = service.Create(ctx, access.Actor{CredentialSupplied: true}, CreateInput{OriginalURL: "https://example.com"})
	assert.ErrorIs(t, err, model.ErrInvalidCredential)
}

func TestResolve_ClickFailureDoesNotBlock(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	c.EXPECT().Get(ctx, "abc").Return(nil, false, nil)
	// Второе чтение сверяет запись после заполнения кэша
	repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc", OriginalURL: "https://example.com"}, nil).Times(2)
	repo.EXPECT().IncrementClick(ctx, "abc", gomock.Any()).Return(errors.New("db down"))
	c.EXPECT().Set(ctx, "abc", &model.CachedLink{URL: "https://example.com"}).Return(nil)

	target, err := service.Resolve(ctx, "abc", nil)

	require.NoError(t, err)
	assert.Equal(t, "https://example.com", target)
}

func TestResolve_CacheHitSkipsStoreLookup(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	c.EXPECT().Get(ctx, "abc").Return(&model.CachedLink{URL: "https://cached.com"}, true, nil)
	// FindByCode не вызывается, клик всё равно пишется в хранилище
	repo.EXPECT().IncrementClick(ctx, "abc", gomock.Any()).Return(nil)

	target, err := service.Resolve(ctx, "abc", nil)

	require.NoError(t, err)
	assert.Equal(t, "https://cached.com", target)
}

func TestResolve_CacheHitRechecksExpiry(t *testing.T) {
	service, _, c := newMockService(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	c.EXPECT().Get(ctx, "abc").Return(&model.CachedLink{URL: "https://cached.com", ExpiresAt: &past}, true, nil)
	c.EXPECT().Invalidate(ctx, "abc").Return(nil)

	_, err := service.Resolve(ctx, "abc", nil)

	assert.ErrorIs(t, err, model.ErrExpired)
}

func TestResolve_CacheHitRechecksPassword(t *testing.T) {
	service, _, c := newMockService(t)
	ctx := context.Background()

	c.EXPECT().Get(ctx, "abc").Return(&model.CachedLink{URL: "https://cached.com", Password: "secret"}, true, nil)

	_, err := service.Resolve(ctx, "abc", nil)

	assert.ErrorIs(t, err, model.ErrPasswordRequired)
}

func TestResolve_CacheError(t *testing.T) {
	service, _, c := newMockService(t)
	ctx := context.Background()

	c.EXPECT().Get(ctx, "abc").Return(nil, false, errors.New("redis down"))

	_, err := service.Resolve(ctx, "abc", nil)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

func TestResolve_CacheSetFailureIsSwallowed(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	c.EXPECT().Get(ctx, "abc").Return(nil, false, nil)
	repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc", OriginalURL: "https://example.com"}, nil)
	repo.EXPECT().IncrementClick(ctx, "abc", gomock.Any()).Return(nil)
	c.EXPECT().Set(ctx, "abc", gomock.Any()).Return(errors.New("redis down"))

	_, err := service.Resolve(ctx, "abc", nil)

	assert.NoError(t, err)
}

func TestDelete_InvalidationFailureStillSucceeds(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc"}, nil)
	repo.EXPECT().SoftDelete(ctx, "abc").Return(nil)
	c.EXPECT().Invalidate(ctx, "abc").Return(errors.New("redis down"))

	assert.NoError(t, service.Delete(ctx, access.Actor{}, "abc"))
}

func TestResolve_MutationDuringFillDropsEntry(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()
	deletedAt := time.Now()

	gomock.InOrder(
		c.EXPECT().Get(ctx, "abc").Return(nil, false, nil),
		repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc", OriginalURL: "https://example.com"}, nil),
		repo.EXPECT().IncrementClick(ctx, "abc", gomock.Any()).Return(nil),
		c.EXPECT().Set(ctx, "abc", gomock.Any()).Return(nil),
		// Ссылку удалили, пока шло заполнение кэша
		repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc", OriginalURL: "https://example.com", DeletedAt: &deletedAt}, nil),
		c.EXPECT().Invalidate(ctx, "abc").Return(nil),
	)

	_, err := service.Resolve(ctx, "abc", nil)

	assert.NoError(t, err)
}

func TestResolve_ChangedTargetDuringFillDropsEntry(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	gomock.InOrder(
		c.EXPECT().Get(ctx, "abc").Return(nil, false, nil),
		repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc", OriginalURL: "https://old.com"}, nil),
		repo.EXPECT().IncrementClick(ctx, "abc", gomock.Any()).Return(nil),
		c.EXPECT().Set(ctx, "abc", gomock.Any()).Return(nil),
		repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc", OriginalURL: "https://new.com", Password: "p"}, nil),
		c.EXPECT().Invalidate(ctx, "abc").Return(nil),
	)

	_, err := service.Resolve(ctx, "abc", nil)

	assert.NoError(t, err)
}

func TestDelete_StoreFailureStillInvalidates(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc"}, nil)
	repo.EXPECT().SoftDelete(ctx, "abc").Return(errors.New("db down"))
	c.EXPECT().Invalidate(ctx, "abc").Return(nil)

	assert.Error(t, service.Delete(ctx, access.Actor{}, "abc"))
}

func TestDelete_NotFoundSkipsInvalidation(t *testing.T) {
	service, repo, _ := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, "abc").Return(&model.ShortLink{ShortCode: "abc"}, nil)
	repo.EXPECT().SoftDelete(ctx, "abc").Return(model.ErrNotFound)

	assert.ErrorIs(t, service.Delete(ctx, access.Actor{}, "abc"), model.ErrNotFound)
}

func TestEdit_StoreFailureInvalidatesBothCodes(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()
	owner := &model.Owner{ID: "o1", Tier: model.TierFree}
	actor := access.Actor{Owner: owner, CredentialSupplied: true}

	repo.EXPECT().FindByCode(ctx, "old").Return(&model.ShortLink{ShortCode: "old", OwnerID: &owner.ID}, nil)
	repo.EXPECT().FindByCode(ctx, "new").Return(nil, model.ErrNotFound)
	repo.EXPECT().Update(ctx, "old", gomock.Any()).Return(nil, errors.New("disk full"))
	c.EXPECT().Invalidate(ctx, "old").Return(nil)
	c.EXPECT().Invalidate(ctx, "new").Return(nil)

	_, err := service.Edit(ctx, actor, "old", "new", nil)

	assert.Error(t, err)
}

func TestDeleteMany_StoreFailureInvalidatesRequested(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()
	actor := access.Actor{Owner: &model.Owner{ID: "o1"}, CredentialSupplied: true}

	repo.EXPECT().SoftDeleteMany(ctx, "o1", []string{"a", "b"}).Return(nil, errors.New("db down"))
	c.EXPECT().Invalidate(ctx, "a").Return(nil)
	c.EXPECT().Invalidate(ctx, "b").Return(nil)

	_, err := service.DeleteMany(ctx, actor, []string{"a", "b"})

	assert.Error(t, err)
}

func TestResolveOwner(t *testing.T) {
	service, repo, _ := newMockService(t)
	ctx := context.Background()
	owner := &model.Owner{ID: "o1", APIKey: "k1", Tier: model.TierFree}

	repo.EXPECT().FindOwnerByAPIKey(ctx, "k1").Return(owner, nil)
	repo.EXPECT().FindOwnerByAPIKey(ctx, "unknown").Return(nil, model.ErrNotFound)
	repo.EXPECT().FindOwnerByAPIKey(ctx, "boom").Return(nil, errors.New("db down"))

	got, err := service.ResolveOwner(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	got, err = service.ResolveOwner(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = service.ResolveOwner(ctx, "boom")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	service, repo, c := newMockService(t)
	ctx := context.Background()

	repo.EXPECT().Ping(ctx).Return(nil)
	c.EXPECT().Ping(ctx).Return(nil)
	hc, err := service.Health(ctx)
	require.NoError(t, err)
	assert.Positive(t, hc.Timestamp)

	repo.EXPECT().Ping(ctx).Return(errors.New("connection refused"))
	_, err = service.Health(ctx)
	assert.Error(t, err)
}

func TestAuditEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	c := cachemocks.NewMockCache(ctrl)
	pub := audit.NewPublisher()
	obs := &recorder{}
	pub.Subscribe(obs)
	service := NewURLService(repo, c, pub, zap.NewNop().Sugar(), Options{})
	ctx := context.Background()

	repo.EXPECT().FindByCode(ctx, "mine").Return(nil, model.ErrNotFound)
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, l *model.ShortLink) (*model.ShortLink, error) {
		return l, nil
	})
	actor := access.Actor{Owner: &model.Owner{ID: "o1"}, CredentialSupplied: true}
	_, err := service.Create(ctx, actor, CreateInput{OriginalURL: "https://example.com", CustomCode: "mine"})
	require.NoError(t, err)

	require.Len(t, obs.events, 1)
	assert.Equal(t, audit.ActionShorten, obs.events[0].Action)
	assert.Equal(t, "o1", obs.events[0].UserID)
	assert.Equal(t, "mine", obs.events[0].Code)
}

type recorder struct {
	events []audit.Event
}

func (r *recorder) Notify(e audit.Event) { r.events = append(r.events, e) }
func (r *recorder) Close() error         { return nil }

// === Тесты без моков (чистая логика) ===

func TestGenerateCode(t *testing.T) {
	results := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.Regexp(t, `^[0-9a-f]{6}$`, code)
		results[code] = true
	}
	// При 16^6 комбинациях 1000 должны быть почти все уникальны
	assert.Greater(t, len(results), 990)
}

func TestValidateCode(t *testing.T) {
	for _, code := range []string{"a", "abc-123", "under_score", "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"} {
		assert.NoError(t, ValidateCode(code), code)
	}
	for _, code := range []string{"", "has space", "slash/", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456", "ünï"} {
		assert.ErrorIs(t, ValidateCode(code), model.ErrInvalidCode, code)
	}
}

func TestValidateURL(t *testing.T) {
	for _, u := range []string{"http://example.com", "https://example.com/path?q=1"} {
		assert.NoError(t, ValidateURL(u), u)
	}
	for _, u := range []string{"", "example.com", "ftp://example.com", "https://", "javascript:alert(1)"} {
		assert.ErrorIs(t, ValidateURL(u), model.ErrInvalidURL, u)
	}
}

func TestParseExpiry(t *testing.T) {
	got, err := ParseExpiry(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := "2030-01-02T03:04:05Z"
	got, err = ParseExpiry(&s)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC), *got)

	d := "2030-01-02"
	got, err = ParseExpiry(&d)
	require.NoError(t, err)
	assert.Equal(t, 2030, got.Year())

	bad := "tomorrow"
	_, err = ParseExpiry(&bad)
	assert.ErrorIs(t, err, model.ErrInvalidExpiry)
}
