package consequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/user"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/gcp"
	"github.com/yungbote/forfeit-backend/internal/platform/httpx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/xsocial"
)

// SocialAdapter publishes a post from the user's connected X account.
type SocialAdapter struct {
	log      *logger.Logger
	social   accounts.SocialAccountRepo
	assets   accounts.KompromatRepo
	objects  gcp.BucketService
	x        xsocial.Client
	messages *messageCatalog
	now      func() time.Time
}

func NewSocialAdapter(
	log *logger.Logger,
	social accounts.SocialAccountRepo,
	assets accounts.KompromatRepo,
	objects gcp.BucketService,
	x xsocial.Client,
) (*SocialAdapter, error) {
	msgs, err := loadMessages()
	if err != nil {
		return nil, err
	}
	return &SocialAdapter{
		log:      log.With("component", "SocialAdapter"),
		social:   social,
		assets:   assets,
		objects:  objects,
		x:        x,
		messages: msgs,
		now:      time.Now,
	}, nil
}

func (a *SocialAdapter) Type() types.ConsequenceType { return types.ConsequenceHumiliationSocial }

func (a *SocialAdapter) Execute(ctx context.Context, req Request) (*Details, error) {
	it := req.Item
	d := &Details{Kind: types.ConsequenceHumiliationSocial, Social: &SocialDetails{Provider: user.SocialProviderX}}
	dbc := dbctx.Context{Ctx: ctx}
	sev := severityFor(it.FailureType)

	acct, err := a.social.GetByUserProvider(dbc, it.UserID, user.SocialProviderX)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return d, precondition(types.ConsequenceHumiliationSocial, "no connected X account")
		}
		return d, err
	}
	d.Social.Handle = acct.Handle
	if !acct.HasScope(user.ScopePostWrite) {
		return d, precondition(types.ConsequenceHumiliationSocial, "account lacks %s scope", user.ScopePostWrite)
	}

	text, err := a.messages.socialPost(sev, req.IdempotencyKey, newMessageData(it, ""))
	if err != nil {
		return d, err
	}

	image, err := a.loadImage(ctx, it, sev)
	if err != nil {
		return d, err
	}

	s := &session{adapter: a, acct: acct, token: acct.AccessToken, details: d}
	var mediaIDs []string
	if image != nil {
		var mediaID string
		err := s.call(ctx, func(token string) error {
			id, err := a.x.UploadMedia(ctx, token, image.Data, image.ContentType)
			mediaID = id
			return err
		})
		d.Social.TokenRefreshed = s.refreshed
		if err != nil {
			return d, fmt.Errorf("upload media: %w", err)
		}
		d.Social.MediaID = mediaID
		mediaIDs = append(mediaIDs, mediaID)
	}

	var post *xsocial.Post
	err = s.call(ctx, func(token string) error {
		p, err := a.x.Post(ctx, token, text, mediaIDs...)
		post = p
		return err
	})
	d.Social.TokenRefreshed = s.refreshed
	if err != nil {
		return d, fmt.Errorf("post: %w", err)
	}
	d.Social.PostID = post.ID
	return d, nil
}

// loadImage returns nil when the tier has no image asset or no bucket is
// configured; the post goes out as text only.
func (a *SocialAdapter) loadImage(ctx context.Context, it types.OverdueItem, sev types.Severity) (*gcp.Object, error) {
	assetID := it.AssetID()
	if assetID == nil || a.objects == nil {
		return nil, nil
	}
	asset, err := a.assets.GetForUser(dbctx.Context{Ctx: ctx}, it.UserID, *assetID, sev)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !asset.IsImage() {
		return nil, nil
	}
	obj, err := a.objects.Download(ctx, gcp.BucketCategoryKompromat, asset.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	if asset.MIMEType != "" {
		obj.ContentType = asset.MIMEType
	}
	return obj, nil
}

// session carries the access token across the upload and the post. A 401
// triggers at most one refresh per execution.
type session struct {
	adapter   *SocialAdapter
	acct      *types.SocialAccount
	token     string
	refreshed bool
	details   *Details
}

func (s *session) call(ctx context.Context, op func(token string) error) error {
	err := op(s.token)
	if err == nil || !httpx.IsUnauthorized(err) || s.refreshed || s.acct.RefreshToken == "" {
		return err
	}
	s.refreshed = true
	tok, rerr := s.adapter.x.RefreshToken(ctx, s.acct.RefreshToken)
	if rerr != nil {
		return fmt.Errorf("refresh token after %v: %w", err, rerr)
	}
	s.token = tok.AccessToken
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = s.acct.RefreshToken
	}
	if perr := s.adapter.social.UpdateTokens(dbctx.Context{Ctx: ctx}, s.acct.ID, tok.AccessToken, refresh, tok.ExpiresAt(s.adapter.now())); perr != nil {
		s.adapter.log.Warn("Persisting refreshed X token failed", "account_id", s.acct.ID, "error", perr)
		s.details.warn("refreshed token not persisted: " + perr.Error())
	}
	s.acct.RefreshToken = refresh
	return op(s.token)
}
