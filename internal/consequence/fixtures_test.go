package consequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	"github.com/yungbote/forfeit-backend/internal/data/repos/ledger"
	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/user"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/entropy"
	"github.com/yungbote/forfeit-backend/internal/platform/gcp"
	"github.com/yungbote/forfeit-backend/internal/platform/httpx"
	"github.com/yungbote/forfeit-backend/internal/platform/sendgrid"
	"github.com/yungbote/forfeit-backend/internal/platform/stripe"
	"github.com/yungbote/forfeit-backend/internal/platform/xsocial"
)

type fakePayments struct {
	mu    sync.Mutex
	calls []stripe.TransferRequest
	err   error
}

func (f *fakePayments) Transfer(_ context.Context, req stripe.TransferRequest) (*stripe.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Transfer{ID: "tr_123", Amount: req.AmountCents, Currency: "usd", Destination: req.Destination}, nil
}

type fakeMail struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
	err  error
}

func (f *fakeMail) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202, MessageID: "msg-1"}, nil
}

type fakeObjects struct {
	objects map[string]*gcp.Object
}

func (f *fakeObjects) Download(_ context.Context, _ gcp.BucketCategory, key string) (*gcp.Object, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	cp := *obj
	return &cp, nil
}

func (f *fakeObjects) Close() error { return nil }

// fakeX answers with the queued errors first, then succeeds.
type fakeX struct {
	mu          sync.Mutex
	postErrs    []error
	uploadErrs  []error
	refreshErr  error
	posts       []string
	tokensUsed  []string
	uploads     int
	refreshes   int
	refreshedTo string
}

func (f *fakeX) Post(_ context.Context, token, text string, _ ...string) (*xsocial.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensUsed = append(f.tokensUsed, token)
	if len(f.postErrs) > 0 {
		err := f.postErrs[0]
		f.postErrs = f.postErrs[1:]
		return nil, err
	}
	f.posts = append(f.posts, text)
	return &xsocial.Post{ID: "post-1", Text: text}, nil
}

func (f *fakeX) UploadMedia(_ context.Context, token string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensUsed = append(f.tokensUsed, token)
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]
		return "", err
	}
	f.uploads++
	return "media-1", nil
}

func (f *fakeX) RefreshToken(_ context.Context, _ string) (*xsocial.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.refreshedTo = "access-2"
	return &xsocial.Token{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 7200}, nil
}

func unauthorized() error {
	return &httpx.StatusError{Provider: "x", StatusCode: 401, Body: "expired"}
}

// racingUsers behaves as if another run drained the balance between the
// precondition check and the debit.
type racingUsers struct{ accounts.UserRepo }

func (racingUsers) DebitBalance(dbctx.Context, uuid.UUID, int64) (bool, error) { return false, nil }

type panicAdapter struct{ t types.ConsequenceType }

func (p panicAdapter) Type() types.ConsequenceType { return p.t }
func (p panicAdapter) Execute(context.Context, Request) (*Details, error) {
	panic("boom")
}

type env struct {
	db       *gorm.DB
	ledger   ledger.LedgerRepo
	users    accounts.UserRepo
	assets   accounts.KompromatRepo
	contacts accounts.ContactRepo
	social   accounts.SocialAccountRepo
	pay      *fakePayments
	mail     *fakeMail
	objects  *fakeObjects
	x        *fakeX

	user        *types.User
	minorAsset  *types.KompromatAsset
	majorAsset  *types.KompromatAsset
	contactList []*types.Contact
}

func newEnv(t *testing.T, balance int64) *env {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	e := &env{
		db:       gdb,
		ledger:   ledger.NewLedgerRepo(gdb, log),
		users:    accounts.NewUserRepo(gdb, log),
		assets:   accounts.NewKompromatRepo(gdb, log),
		contacts: accounts.NewContactRepo(gdb, log),
		social:   accounts.NewSocialAccountRepo(gdb, log),
		pay:      &fakePayments{},
		mail:     &fakeMail{},
		objects:  &fakeObjects{objects: map[string]*gcp.Object{}},
		x:        &fakeX{},
	}
	e.user = &types.User{Email: "ana@example.com", FirstName: "Ana", BalanceCents: balance, Currency: "usd"}
	mustCreate(t, gdb, e.user)

	e.minorAsset = &types.KompromatAsset{UserID: e.user.ID, Severity: types.SeverityMinor, StorageKey: "k/minor.png", Filename: "Karaoke Night!.png", MIMEType: "image/png"}
	e.majorAsset = &types.KompromatAsset{UserID: e.user.ID, Severity: types.SeverityMajor, StorageKey: "k/major.jpg", Filename: "diary.jpg", MIMEType: "image/jpeg"}
	mustCreate(t, gdb, e.minorAsset)
	mustCreate(t, gdb, e.majorAsset)
	e.objects.objects["k/minor.png"] = &gcp.Object{Key: "k/minor.png", ContentType: "image/png", Data: []byte("png-bytes")}
	e.objects.objects["k/major.jpg"] = &gcp.Object{Key: "k/major.jpg", ContentType: "image/jpeg", Data: []byte("jpg-bytes")}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []struct{ name, email string }{{"Bo", "bo@example.com"}, {"Cy", "cy@example.com"}} {
		ct := &types.Contact{UserID: e.user.ID, Name: c.name, Email: c.email, IsConsequenceTarget: true, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		mustCreate(t, gdb, ct)
		e.contactList = append(e.contactList, ct)
	}
	return e
}

func (e *env) connectX(t *testing.T, scopes string, refresh string) *types.SocialAccount {
	t.Helper()
	acct := &types.SocialAccount{UserID: e.user.ID, Provider: user.SocialProviderX, Handle: "@ana", AccessToken: "access-1", RefreshToken: refresh, Scopes: scopes}
	mustCreate(t, e.db, acct)
	return acct
}

func (e *env) item(ft types.FailureType, stake int64, channels ...types.ConsequenceType) types.OverdueItem {
	return types.OverdueItem{
		FailureType:      ft,
		ItemID:           uuid.New(),
		GoalID:           uuid.New(),
		UserID:           e.user.ID,
		Title:            "Draft chapter one",
		GoalTitle:        "Write a novel",
		ConsequenceTypes: channels,
		StakeCents:       stake,
		CharityID:        "givedirectly",
		MinorAssetID:     &e.minorAsset.ID,
		MajorAssetID:     &e.majorAsset.ID,
		Deadline:         time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC),
	}
}

func (e *env) charities() *Charities {
	return NewCharities(Charity{ID: "givedirectly", Name: "GiveDirectly", Destination: "acct_gd"})
}

func (e *env) executor(t *testing.T, src entropy.Source) Executor {
	t.Helper()
	log := testutil.Logger(t)
	email, err := NewEmailAdapter(log, e.assets, e.contacts, e.users, e.objects, e.mail, src)
	if err != nil {
		t.Fatalf("NewEmailAdapter: %v", err)
	}
	social, err := NewSocialAdapter(log, e.social, e.assets, e.objects, e.x)
	if err != nil {
		t.Fatalf("NewSocialAdapter: %v", err)
	}
	return NewExecutor(log, e.ledger, nil,
		NewMonetaryAdapter(log, e.pay, e.users, e.charities()),
		email,
		social,
	)
}

func (e *env) balance(t *testing.T) int64 {
	t.Helper()
	var u types.User
	if err := e.db.First(&u, "id = ?", e.user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u.BalanceCents
}

func mustCreate(t *testing.T, gdb *gorm.DB, v any) {
	t.Helper()
	if err := gdb.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func mustDetails(t *testing.T, rec *types.ConsequenceRecord) Details {
	t.Helper()
	d, err := DecodeDetails(rec.Details)
	if err != nil {
		t.Fatalf("decode details: %v", err)
	}
	return d
}
