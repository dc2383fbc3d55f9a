// lumen/routes/chat.go
package routes

import (
	"encoding/json"
	"net/http"

	"lumen/lumen/apperrors"
	"lumen/lumen/config"
	"lumen/lumen/controllers"
	"lumen/lumen/middlewares"
	"lumen/lumen/types"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func chatID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "chat_id"))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.NotFound, apperrors.DomainChat, "chat not found")
	}
	return id, nil
}

func ChatRoutes(ctrl *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		// GET /chats : list caller's chats
		gr.Get("/", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			chats, err := ctrl.ListChats(r.Context(), userID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"chats": chats}, nil
		}))

		// POST /chats : create chat
		gr.Post("/", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			var req types.CreateChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainChat, "invalid body")
			}
			chat, err := ctrl.CreateChat(r.Context(), userID, req)
			if err != nil {
				return nil, err
			}
			return map[string]any{"chat": chat}, nil
		}))

		// GET /chats/{chat_id} : chat + messages
		gr.Get("/{chat_id}", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			return ctrl.GetChat(r.Context(), userID, id)
		}))

		// PATCH /chats/{chat_id} : rename
		gr.Patch("/{chat_id}", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			var req types.RenameChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainChat, "invalid body")
			}
			chat, err := ctrl.RenameChat(r.Context(), userID, id, req.Title)
			if err != nil {
				return nil, err
			}
			return map[string]any{"chat": chat}, nil
		}))

		// DELETE /chats/{chat_id}
		gr.Delete("/{chat_id}", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			if err := ctrl.DeleteChat(r.Context(), userID, id); err != nil {
				return nil, err
			}
			return map[string]any{"success": true}, nil
		}))

		// PATCH /chats/{chat_id}/pin : pinned must be a strict boolean
		gr.Patch("/{chat_id}/pin", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			var req types.PinRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainChat, "pinned must be a boolean")
			}
			chat, err := ctrl.TogglePin(r.Context(), userID, id, req.Pinned)
			if err != nil {
				return nil, err
			}
			return map[string]any{"chat": chat}, nil
		}))

		// POST /chats/{chat_id}/share : make public, idempotent
		gr.Post("/{chat_id}/share", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			chat, err := ctrl.MakePublic(r.Context(), userID, id)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "chat": chat}, nil
		}))

		// DELETE /chats/{chat_id}/messages/{message_id}/after : cascade delete
		gr.Delete("/{chat_id}/messages/{message_id}/after", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			msgID, err := uuid.Parse(chi.URLParam(r, "message_id"))
			if err != nil {
				return nil, apperrors.New(apperrors.NotFound, apperrors.DomainChat, "message not found")
			}
			if err := ctrl.DeleteMessagesAfter(r.Context(), userID, id, msgID); err != nil {
				return nil, err
			}
			return nil, nil // 204
		}))

		// POST /chats/{chat_id}/messages : submit user message, get reply
		gr.Post("/{chat_id}/messages", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			var req types.PostMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainChat, "invalid body")
			}
			return ctrl.PostMessage(r.Context(), userID, id, req)
		}))

		// POST /chats/{chat_id}/messages/{message_id}/regenerate
		gr.Post("/{chat_id}/messages/{message_id}/regenerate", handleJSON(func(r *http.Request) (any, error) {
			userID, err := callerID(r)
			if err != nil {
				return nil, err
			}
			id, err := chatID(r)
			if err != nil {
				return nil, err
			}
			msgID, err := uuid.Parse(chi.URLParam(r, "message_id"))
			if err != nil {
				return nil, apperrors.New(apperrors.NotFound, apperrors.DomainChat, "message not found")
			}
			return ctrl.RegenerateFrom(r.Context(), userID, id, msgID)
		}))
	})

	// Streaming endpoint; the token rides in the first frame because
	// browser websocket clients cannot set headers.
	r.HandleFunc("/{chat_id}/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := r.Context()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "unsupported data")
			return
		}
		var init types.StreamInit
		if err := json.Unmarshal(data, &init); err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid json"}`))
			return
		}
		userID, _, err := middlewares.ParseToken(cfg, init.Token)
		if err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid token"}`))
			conn.Close(websocket.StatusPolicyViolation, "invalid token")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "chat_id"))
		if err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"chat not found"}`))
			conn.Close(websocket.StatusPolicyViolation, "chat not found")
			return
		}

		ch, errCh := ctrl.StreamReply(ctx, userID, id, init.Message)
		go func() {
			if err := <-errCh; err != nil {
				appErr := apperrors.Normalize(err)
				conn.Write(ctx, websocket.MessageText, []byte(`{"error":"`+appErr.Error()+`"}`))
				conn.Close(websocket.StatusInternalError, "stream error")
			}
		}()

		for chunk := range ch {
			if err := conn.Write(ctx, websocket.MessageText, []byte(chunk)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})
	return r
}
