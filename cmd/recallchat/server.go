package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asifkhan0410/recallchat"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const defaultUserID = "default-user"

// userID resolves the caller identity. Authentication proper lives in front
// of this server; here the header is taken at face value.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	return defaultUserID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrAddFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func createConversationsRouter(router *mux.Router, runtime *recallchat.ChatRuntime) {
	router.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conversation, err := runtime.Threads().CreateConversation(r.Context(), userID(r), req.Title)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conversation)
	}).Methods("POST")

	router.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		conversations, err := runtime.Threads().GetConversations(r.Context(), userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversations)
	}).Methods("GET")

	router.HandleFunc("/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		conversation, err := runtime.Threads().GetConversation(r.Context(), mux.Vars(r)["id"], userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversation)
	}).Methods("GET")

	router.HandleFunc("/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := runtime.Threads().DeleteConversation(r.Context(), mux.Vars(r)["id"], userID(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")

	router.HandleFunc("/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		conversationID := mux.Vars(r)["id"]
		if _, err := runtime.Threads().GetConversation(r.Context(), conversationID, userID(r)); err != nil {
			writeError(w, err)
			return
		}
		messages, err := runtime.Threads().GetMessages(r.Context(), conversationID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}).Methods("GET")

	router.HandleFunc("/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := runtime.SendMessage(r.Context(), userID(r), mux.Vars(r)["id"], req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"userMessage":      result.UserMessage,
			"assistantMessage": result.AssistantMessage,
			"references":       result.References,
		})
	}).Methods("POST")
}

func createMessagesRouter(router *mux.Router, runtime *recallchat.ChatRuntime) {
	router.HandleFunc("/messages/{id}/activity", func(w http.ResponseWriter, r *http.Request) {
		activity, err := runtime.Ledger().ActivityForMessage(r.Context(), mux.Vars(r)["id"], userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	}).Methods("GET")

	router.HandleFunc("/messages/{id}/references", func(w http.ResponseWriter, r *http.Request) {
		references, err := runtime.Threads().GetMemoryReferences(r.Context(), mux.Vars(r)["id"], userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, references)
	}).Methods("GET")
}

func createMemoriesRouter(router *mux.Router, runtime *recallchat.ChatRuntime) {
	router.HandleFunc("/memories", func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		offset := 0
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		result, err := runtime.Memory().GetAllMemories(r.Context(), userID(r), limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}).Methods("GET")

	router.HandleFunc("/memories/search", func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		results, err := runtime.Memory().SearchMemories(r.Context(), userID(r), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}).Methods("GET")

	router.HandleFunc("/memories", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text     string         `json:"text"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		added, err := runtime.Memory().AddMemory(r.Context(), userID(r), req.Text, req.Metadata)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	}).Methods("POST")

	router.HandleFunc("/memories/{id}", func(w http.ResponseWriter, r *http.Request) {
		found, err := runtime.Memory().GetMemoryByID(r.Context(), mux.Vars(r)["id"], userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if found == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "memory not found"})
			return
		}
		writeJSON(w, http.StatusOK, found)
	}).Methods("GET")

	router.HandleFunc("/memories/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ok, err := runtime.Memory().UpdateMemory(r.Context(), mux.Vars(r)["id"], userID(r), req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
	}).Methods("PUT")

	router.HandleFunc("/memories/{id}", func(w http.ResponseWriter, r *http.Request) {
		ok, err := runtime.Memory().DeleteMemory(r.Context(), mux.Vars(r)["id"], userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
	}).Methods("DELETE")

	router.HandleFunc("/memories/{id}/restore", func(w http.ResponseWriter, r *http.Request) {
		restored, err := runtime.Memory().RestoreMemory(r.Context(), mux.Vars(r)["id"], userID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, restored)
	}).Methods("POST")
}

func createCacheRouter(router *mux.Router, runtime *recallchat.ChatRuntime) {
	router.HandleFunc("/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, runtime.Cache().GetStats())
	}).Methods("GET")

	router.HandleFunc("/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		runtime.Cache().ClearAll()
		w.WriteHeader(http.StatusNoContent)
	}).Methods("POST")
}

func newServerHandler(runtime *recallchat.ChatRuntime, logger *mylog.Logger) http.Handler {
	router := mux.NewRouter()
	createConversationsRouter(router, runtime)
	createMessagesRouter(router, runtime)
	createMemoriesRouter(router, runtime)
	createCacheRouter(router, runtime)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-User-Id"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		router.ServeHTTP(w, r.WithContext(ctx))
	})

	return cors(recovery(handler))
}
