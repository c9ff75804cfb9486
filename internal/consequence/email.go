package consequence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gosimple/slug"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/entropy"
	"github.com/yungbote/forfeit-backend/internal/platform/gcp"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/sendgrid"
)

// EmailAdapter sends the user's shame asset to one randomly chosen contact.
type EmailAdapter struct {
	log      *logger.Logger
	assets   accounts.KompromatRepo
	contacts accounts.ContactRepo
	users    accounts.UserRepo
	objects  gcp.BucketService
	mail     sendgrid.Client
	rand     entropy.Source
	messages *messageCatalog
}

func NewEmailAdapter(
	log *logger.Logger,
	assets accounts.KompromatRepo,
	contacts accounts.ContactRepo,
	users accounts.UserRepo,
	objects gcp.BucketService,
	mail sendgrid.Client,
	rand entropy.Source,
) (*EmailAdapter, error) {
	msgs, err := loadMessages()
	if err != nil {
		return nil, err
	}
	if rand == nil {
		rand = entropy.Secure()
	}
	return &EmailAdapter{
		log:      log.With("component", "EmailAdapter"),
		assets:   assets,
		contacts: contacts,
		users:    users,
		objects:  objects,
		mail:     mail,
		rand:     rand,
		messages: msgs,
	}, nil
}

func (a *EmailAdapter) Type() types.ConsequenceType { return types.ConsequenceHumiliationEmail }

func (a *EmailAdapter) Execute(ctx context.Context, req Request) (*Details, error) {
	it := req.Item
	d := &Details{Kind: types.ConsequenceHumiliationEmail, Email: &EmailDetails{}}
	dbc := dbctx.Context{Ctx: ctx}
	sev := severityFor(it.FailureType)

	assetID := it.AssetID()
	if assetID == nil {
		return d, precondition(types.ConsequenceHumiliationEmail, "no %s asset configured", sev)
	}
	asset, err := a.assets.GetForUser(dbc, it.UserID, *assetID, sev)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return d, precondition(types.ConsequenceHumiliationEmail, "%s asset not found", sev)
		}
		return d, err
	}
	d.Email.AssetID = asset.ID

	targets, err := a.contacts.ListConsequenceTargets(dbc, it.UserID)
	if err != nil {
		return d, err
	}
	if len(targets) == 0 {
		return d, precondition(types.ConsequenceHumiliationEmail, "no consequence contacts")
	}
	idx, err := a.rand.Intn(len(targets))
	if err != nil {
		return d, fmt.Errorf("pick contact: %w", err)
	}
	contact := targets[idx]
	d.Email.ContactID = contact.ID

	u, err := a.users.GetByID(dbc, it.UserID)
	if err != nil {
		return d, err
	}

	obj, err := a.objects.Download(ctx, gcp.BucketCategoryKompromat, asset.StorageKey)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return d, precondition(types.ConsequenceHumiliationEmail, "asset bytes missing from storage")
		}
		return d, fmt.Errorf("fetch asset: %w", err)
	}

	data := newMessageData(it, u.DisplayName())
	data.Contact = contact.Name
	if data.Contact == "" {
		data.Contact = "there"
	}
	subject, html, text, err := a.messages.email(sev, data)
	if err != nil {
		return d, err
	}

	mimeType := asset.MIMEType
	if mimeType == "" {
		mimeType = obj.ContentType
	}
	res, err := a.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: contact.Email, Name: contact.Name}},
		Subject:    subject,
		Text:       text,
		HTML:       html,
		Categories: []string{"consequence", string(types.ConsequenceHumiliationEmail)},
		CustomArgs: map[string]string{"idempotency_key": req.IdempotencyKey},
		Attachments: []sendgrid.Attachment{{
			Filename: attachmentName(asset, obj.Key),
			MIMEType: mimeType,
			Content:  obj.Data,
		}},
	})
	if err != nil {
		return d, fmt.Errorf("send: %w", err)
	}
	d.Email.MessageID = res.MessageID
	return d, nil
}

// attachmentName keeps the extension and slugs the rest, so user-chosen names
// can't smuggle path or header characters into the message.
func attachmentName(asset *types.KompromatAsset, key string) string {
	name := strings.TrimSpace(asset.Filename)
	if name == "" {
		name = path.Base(key)
	}
	ext := path.Ext(name)
	base := slug.Make(strings.TrimSuffix(name, ext))
	if base == "" {
		base = "attachment"
	}
	if ext = slug.Make(strings.TrimPrefix(ext, ".")); ext != "" {
		return base + "." + ext
	}
	return base
}
