package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/lingostream/livecap/internal/pipeline"
	"github.com/lingostream/livecap/internal/translate"
)

func paramsFor(t *testing.T, query string, requireSource bool) (pipeline.Params, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/stt/deepgram?"+query, nil)
	rec := httptest.NewRecorder()
	return parseParams(e.NewContext(req, rec), requireSource)
}

func TestParseParams_Defaults(t *testing.T) {
	p, err := paramsFor(t, "source_lang=en&target_lang=fr", true)
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if p.Aggressiveness != 1 || p.PartialInterval != pipeline.DefaultPartialInterval || p.Mode != translate.ModeQuality {
		t.Fatalf("defaults = %+v", p)
	}
}

func TestParseParams_Overrides(t *testing.T) {
	p, err := paramsFor(t, "source_lang=multi&target_lang=ko&aggressiveness=2&partial_interval=3&translator_mode=speed", true)
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if p.SourceLang != "multi" || p.TargetLang != "ko" || p.Aggressiveness != 2 || p.PartialInterval != 3 || p.Mode != translate.ModeSpeed {
		t.Fatalf("params = %+v", p)
	}
}

func TestParseParams_SourceOptionalForAutodetect(t *testing.T) {
	if _, err := paramsFor(t, "target_lang=fr", false); err != nil {
		t.Fatalf("autodetect vendor should not require source_lang: %v", err)
	}
	if _, err := paramsFor(t, "target_lang=fr", true); err == nil {
		t.Fatalf("diarizing vendor must require source_lang")
	}
	// When supplied, it must still be valid.
	if _, err := paramsFor(t, "source_lang=xx&target_lang=fr", false); err == nil {
		t.Fatalf("invalid source_lang accepted")
	}
}

func TestParseParams_Invalid(t *testing.T) {
	cases := []string{
		"source_lang=en&target_lang=nope",
		"source_lang=en&target_lang=fr&aggressiveness=3",
		"source_lang=en&target_lang=fr&aggressiveness=high",
		"source_lang=en&target_lang=fr&partial_interval=0",
		"source_lang=en&target_lang=fr&partial_interval=-2",
		"source_lang=en&target_lang=fr&translator_mode=fast",
	}
	for _, q := range cases {
		if _, err := paramsFor(t, q, true); err == nil {
			t.Fatalf("query %q should be rejected", q)
		}
	}
}
