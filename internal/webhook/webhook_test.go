package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/campaign"
)

var testNow = time.Date(2026, 10, 17, 8, 15, 0, 0, time.UTC)

func testRecord() campaign.Record {
	return campaign.Record{
		Subject:        "Big Match",
		Preheader:      "Tonight",
		TemplateType:   campaign.TypeSport,
		Body:           "**Win now**\n- Bet 1",
		CTAText:        "Play",
		CTALink:        "https://x",
		Terms:          "18+",
		ImageURL:       "https://img",
		ImageClickLink: "https://click",
		User:           "ops@example.com",
	}
}

func TestNewPayload(t *testing.T) {
	p := NewPayload(testRecord(), "", testNow)

	_, err := uuid.Parse(p.ID)
	assert.NoError(t, err)
	assert.Equal(t, "SPORT", p.TemplateType)
	assert.Equal(t, "**Win now**\n- Bet 1", p.BodyText)
	assert.Equal(t, "<strong>Win now</strong><br><ul><li>Bet 1</li></ul>", p.BodyHTML)
	assert.Equal(t, "18+<br>", p.TermsHTML)
	assert.Equal(t, "2026-10-17T08:15:00Z", p.SubmittedAt)
	assert.Equal(t, DefaultSource, p.Source)
	assert.Equal(t, "https://click", p.ImageClickLink)

	rec := testRecord()
	rec.SubmittedAt = "2026-01-01T00:00:00Z"
	p = NewPayload(rec, "crm", testNow)
	assert.Equal(t, "2026-01-01T00:00:00Z", p.SubmittedAt)
	assert.Equal(t, "crm", p.Source)
}

func TestClient_Submit(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "react-form", time.Second)
	c.now = func() time.Time { return testNow }

	p, err := c.Submit(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, p.ID, got["id"])
	assert.Equal(t, "Big Match", got["subject"])
	assert.Equal(t, "react-form", got["source"])
	assert.Equal(t, "ops@example.com", got["user"])
	assert.Contains(t, got, "terms_html")
}

func TestClient_SubmitErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing url", func(t *testing.T) {
		_, err := NewClient("", "", 0).Submit(ctx, testRecord())
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	})

	t.Run("missing image", func(t *testing.T) {
		rec := testRecord()
		rec.ImageURL = ""
		_, err := NewClient("http://127.0.0.1:1", "", 0).Submit(ctx, rec)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("hook rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "zap is off", http.StatusGone)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "", time.Second).Submit(ctx, testRecord())
		assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

		msg, details := apperr.Message(err)
		assert.Equal(t, "Zapier hook failed", msg)
		assert.Equal(t, "zap is off\n", details)
	})
}
