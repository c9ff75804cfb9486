package consequence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/entropy"
)

func TestEmailUsesMinorAssetForCheckpoint(t *testing.T) {
	e := newEnv(t, 0)
	a, err := NewEmailAdapter(testutil.Logger(t), e.assets, e.contacts, e.users, e.objects, e.mail, entropy.NewScripted(0))
	require.NoError(t, err)
	it := e.item(types.FailureCheckpoint, 0, types.ConsequenceHumiliationEmail)

	d, err := a.Execute(context.Background(), Request{Item: it, IdempotencyKey: it.IdempotencyKey()})
	require.NoError(t, err)
	assert.Equal(t, e.minorAsset.ID, d.Email.AssetID)
	assert.Equal(t, e.contactList[0].ID, d.Email.ContactID)
	assert.Equal(t, "msg-1", d.Email.MessageID)

	require.Len(t, e.mail.sent, 1)
	msg := e.mail.sent[0]
	assert.Equal(t, "karaoke-night.png", msg.Attachments[0].Filename)
	assert.Equal(t, "image/png", msg.Attachments[0].MIMEType)
	assert.Contains(t, msg.HTML, "<strong>Write a novel</strong>")
	assert.Contains(t, msg.Text, "Draft chapter one")
}

func TestEmailPreconditions(t *testing.T) {
	cases := []struct {
		name  string
		setup func(e *env, it *types.OverdueItem)
	}{
		{"no asset configured", func(e *env, it *types.OverdueItem) { it.MinorAssetID = nil }},
		{"asset of wrong tier", func(e *env, it *types.OverdueItem) { it.MinorAssetID = &e.majorAsset.ID }},
		{"asset bytes missing", func(e *env, it *types.OverdueItem) { delete(e.objects.objects, "k/minor.png") }},
		{"no contacts", func(e *env, it *types.OverdueItem) {
			e.db.Model(&types.Contact{}).Where("user_id = ?", e.user.ID).Update("is_consequence_target", false)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, 0)
			a, err := NewEmailAdapter(testutil.Logger(t), e.assets, e.contacts, e.users, e.objects, e.mail, entropy.NewScripted(0))
			require.NoError(t, err)
			it := e.item(types.FailureCheckpoint, 0, types.ConsequenceHumiliationEmail)
			tc.setup(e, &it)

			_, err = a.Execute(context.Background(), Request{Item: it, IdempotencyKey: "k"})
			assert.True(t, IsPrecondition(err), "want precondition, got %v", err)
			assert.Empty(t, e.mail.sent)
		})
	}
}

func TestAttachmentName(t *testing.T) {
	cases := []struct {
		filename string
		key      string
		want     string
	}{
		{"Karaoke Night!.png", "x", "karaoke-night.png"},
		{"", "users/1/embarrassing photo.JPG", "embarrassing-photo.jpg"},
		{"../../etc/passwd", "x", "etc-passwd"},
		{"???.gif", "x", "attachment.gif"},
	}
	for _, tc := range cases {
		got := attachmentName(&types.KompromatAsset{Filename: tc.filename}, tc.key)
		if got != tc.want {
			t.Fatalf("attachmentName(%q,%q): want=%q got=%q", tc.filename, tc.key, tc.want, got)
		}
	}
}
