package region

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/region/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
)

type fixedSummaries []entity.Summary

func (f fixedSummaries) Summaries(context.Context) ([]entity.Summary, error) { return f, nil }

func TestList(t *testing.T) {
	logger := zap.NewNop().Sugar()
	view, err := web.NewRenderer(logger)
	if err != nil {
		t.Fatal(err)
	}
	rows := fixedSummaries{
		{ID: 1, Name: "Casablanca-Settat", VoterCount: 42, PendingVoters: 3, CandidateCount: 5},
		{ID: 2, Name: "Souss-Massa", VoterCount: 7},
	}
	h := NewHandler(nil, rows, view, logger)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/admin/regions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Casablanca-Settat", "<td>42</td><td>3</td><td>5</td>", "Souss-Massa"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
