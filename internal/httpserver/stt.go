package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lingostream/livecap/internal/asr"
	"github.com/lingostream/livecap/internal/config"
	"github.com/lingostream/livecap/internal/langs"
	"github.com/lingostream/livecap/internal/pipeline"
	"github.com/lingostream/livecap/internal/splitter"
	"github.com/lingostream/livecap/internal/tone"
	"github.com/lingostream/livecap/internal/translate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// parseParams validates the session query parameters. Vendors without
// diarization autodetect the source language, so source_lang is optional
// for them.
func parseParams(c echo.Context, requireSource bool) (pipeline.Params, error) {
	var p pipeline.Params

	p.SourceLang = c.QueryParam("source_lang")
	if requireSource && p.SourceLang == "" {
		return p, fmt.Errorf("source_lang is required")
	}
	if p.SourceLang != "" && !langs.ValidSource(p.SourceLang) {
		return p, fmt.Errorf("unsupported source_lang %q", p.SourceLang)
	}

	p.TargetLang = c.QueryParam("target_lang")
	if !langs.ValidTarget(p.TargetLang) {
		return p, fmt.Errorf("unsupported target_lang %q", p.TargetLang)
	}

	p.Aggressiveness = 1
	if raw := c.QueryParam("aggressiveness"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || (v != 1 && v != 2) {
			return p, fmt.Errorf("aggressiveness must be 1 or 2")
		}
		p.Aggressiveness = v
	}

	p.PartialInterval = pipeline.DefaultPartialInterval
	if raw := c.QueryParam("partial_interval"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return p, fmt.Errorf("partial_interval must be a positive integer")
		}
		p.PartialInterval = v
	}

	p.Mode = translate.ModeQuality
	if raw := c.QueryParam("translator_mode"); raw != "" {
		switch translate.Mode(raw) {
		case translate.ModeQuality, translate.ModeSpeed:
			p.Mode = translate.Mode(raw)
		default:
			return p, fmt.Errorf("translator_mode must be quality or speed")
		}
	}

	return p, nil
}

func (s *Server) handleDeepgram(c echo.Context) error {
	params, err := parseParams(c, true)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.runSession(conn, params, func(ctx context.Context, cfg config.Config) (asr.Adapter, error) {
		return asr.NewDeepgram(ctx, cfg.DeepgramKey, params.SourceLang, s.logger)
	})
	return nil
}

func (s *Server) handleAssemblyAI(c echo.Context) error {
	params, err := parseParams(c, false)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.runSession(conn, params, func(ctx context.Context, cfg config.Config) (asr.Adapter, error) {
		return asr.NewAssemblyAI(ctx, cfg.AssemblyAIKey, s.logger)
	})
	return nil
}

type clientControl struct {
	Type string `json:"type"`
}

// runSession owns one client connection end to end: vendor dial, pipeline
// construction, the audio read loop and the outbound writer.
func (s *Server) runSession(conn *websocket.Conn, params pipeline.Params, dial func(context.Context, config.Config) (asr.Adapter, error)) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter, err := dial(ctx, s.cfg)
	if err != nil {
		s.logger.Error("asr connect failed", "error", err)
		kind := pipeline.ErrKindASRTransient
		if errors.Is(err, asr.ErrMissingKey) {
			kind = pipeline.ErrKindASRFatal
		}
		s.writeMessage(conn, pipeline.ErrorMessage(kind, err.Error()))
		return
	}

	speed, err := translate.NewRealtime(s.cfg.OpenAIKey, s.logger)
	if err != nil {
		s.logger.Error("realtime translator connect failed", "error", err)
		s.writeMessage(conn, pipeline.ErrorMessage(pipeline.ErrKindTranslationFatal, err.Error()))
		adapter.Close()
		return
	}

	var quality translate.Backend
	if params.Mode == translate.ModeQuality {
		dl, err := translate.NewDeepL(s.cfg.DeepLKey, s.cfg.DeepLBaseURL, params.TargetLang, s.logger)
		if err != nil {
			// Target not supported by the quality backend: confirmed
			// translations fall back to the realtime client.
			s.logger.Warn("quality backend unavailable", "error", err)
		} else {
			quality = dl
		}
	}

	summarizer := translate.NewSummarizer(ctx, s.cfg.OpenAIKey, s.logger)
	svc := translate.NewService(params.Mode, quality, speed, summarizer, s.logger)

	sess := pipeline.NewSession(ctx, params, adapter, svc,
		tone.New(s.cfg.OpenAIKey, s.logger),
		splitter.New(s.cfg.OpenAIKey, s.logger),
		s.logger)
	logger := s.logger.With("session", sess.ID)
	logger.Info("session started",
		"source_lang", params.SourceLang, "target_lang", params.TargetLang,
		"aggressiveness", params.Aggressiveness, "mode", params.Mode)

	go sess.Run()

	// Writer goroutine owns the socket's write side.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for m := range sess.Out() {
			if err := conn.WriteJSON(m); err != nil {
				logger.Debug("client write failed", "error", err)
				sess.Stop()
				for range sess.Out() {
				}
				return
			}
		}
	}()

	// Read loop: binary frames are raw PCM16LE audio, text frames carry
	// control messages.
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("client disconnected", "error", err)
			sess.Stop()
			break
		}
		switch mt {
		case websocket.BinaryMessage:
			if err := adapter.SendAudio(data); err != nil {
				logger.Warn("audio forward failed", "error", err)
			}
		case websocket.TextMessage:
			var ctl clientControl
			if err := json.Unmarshal(data, &ctl); err != nil {
				logger.Debug("bad control frame", "error", err)
				continue
			}
			if ctl.Type == "end_stream" {
				logger.Info("client requested end of stream")
				// Closing the adapter produces the synthetic eos; the
				// session drains and closes Out, which ends the writer.
				adapter.Close()
			}
		}
	}

	<-writerDone
	logger.Info("session finished")
}

func (s *Server) writeMessage(conn *websocket.Conn, m pipeline.Message) {
	if err := conn.WriteJSON(m); err != nil {
		s.logger.Debug("error message write failed", "error", err)
	}
}
