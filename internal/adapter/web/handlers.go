package web

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/profile"
	"portfolio-assistant/internal/render"
	"portfolio-assistant/internal/streamproto"
	"portfolio-assistant/internal/usecase/chat"
)

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
}

type renderRequest struct {
	Markdown string `json:"markdown"`
}

type renderResponse struct {
	HTML string `json:"html"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type indexView struct {
	Profile profile.Profile
	Bio     template.HTML
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stream, err := s.relay.Relay(r.Context(), req.Messages)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrInvalidConversation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, chat.ErrProvider):
			logger.Warn().Err(err).Msg("provider request failed")
			writeError(w, http.StatusBadGateway, chat.ErrProvider.Error())
		default:
			logger.Error().Err(err).Msg("relay failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	defer stream.Close()

	textOnly := r.URL.Query().Get("protocol") == "text"
	w.Header().Set("Content-Type", streamproto.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	if !textOnly {
		w.Header().Set(streamproto.HeaderName, streamproto.HeaderValue)
	}
	w.WriteHeader(http.StatusOK)

	enc := streamproto.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	chunks := 0
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if r.Context().Err() != nil {
				logger.Debug().Int("chunks", chunks).Msg("client went away")
				return
			}
			logger.Warn().Err(err).Int("chunks", chunks).Msg("provider stream failed")
			if textOnly {
				// no error frame in plain text; cut the connection
				panic(http.ErrAbortHandler)
			}
			_ = enc.Error("provider stream failed")
			return
		}

		if textOnly {
			_, err = io.WriteString(w, chunk)
			if flusher != nil {
				flusher.Flush()
			}
		} else {
			err = enc.Text(chunk)
		}
		if err != nil {
			logger.Debug().Err(err).Msg("write to client failed")
			return
		}
		chunks++
	}

	reason := chat.FinishReason(stream)
	if !textOnly {
		_ = enc.Finish(reason)
	}
	logger.Debug().Int("chunks", chunks).Str("finish_reason", reason).Msg("reply streamed")
}

// handleRender turns a finished reply into HTML for the chat widget. Raw
// HTML and unsafe link schemes in the markdown are dropped by goldmark.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	html, err := render.HTML(render.Normalize(req.Markdown))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render reply")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{HTML: html})
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.profile)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.page.Execute(w, indexView{Profile: s.profile, Bio: s.bio})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render index page")
	}
}

func renderBio(md string) (template.HTML, error) {
	html, err := render.HTML(render.Normalize(md))
	if err != nil {
		return "", errors.Wrap(err, "render bio")
	}
	// bio comes from the operator's own profile file
	return template.HTML(html), nil // #nosec G203
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
