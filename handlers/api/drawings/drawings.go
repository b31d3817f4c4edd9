package drawings

import (
	"encoding/json"
	"io"
	"net/http"

	"sketchvault/core"
	"sketchvault/handlers/auth"
	"sketchvault/middleware"
	"sketchvault/objectstore"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// drawingEnvelope is the slice of the request body we care about beyond the
// raw payload: the drawing name buried in appState, and an optional thumbnail
// image as a base64 data URL.
type drawingEnvelope struct {
	AppState struct {
		Name string `json:"name"`
	} `json:"appState"`
	Thumbnail string `json:"thumbnail"`
}

// DrawingCreateResponse is returned after a successful create or save.
type DrawingCreateResponse struct {
	ID           string `json:"id"`
	DataURL      string `json:"dataUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func claimsFrom(w http.ResponseWriter, r *http.Request) (*auth.AppClaims, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil, false
	}
	return claims, true
}

// HandleList returns metadata for all of the user's drawings.
func HandleList(store core.DrawingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		list, err := store.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list drawings")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list drawings"})
			return
		}

		if list == nil {
			list = []*core.Drawing{}
		}
		render.JSON(w, r, list)
	}
}

// HandleCreate stores a new drawing under a fresh ULID and returns its
// identifier and object URLs.
func HandleCreate(store core.DrawingStore, client *objectstore.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handleUpsert(store, client, ulid.Make().String())(w, r)
	}
}

// HandleSave creates or overwrites the drawing named in the URL.
func HandleSave(store core.DrawingStore, client *objectstore.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Drawing id is required"})
			return
		}
		handleUpsert(store, client, id)(w, r)
	}
}

func handleUpsert(store core.DrawingStore, client *objectstore.Client, id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}
		log := logrus.WithFields(logrus.Fields{
			"userID":     claims.Subject,
			"drawing_id": id,
		})

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.WithError(err).Error("Failed to read request body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		if !json.Valid(body) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Request body must be valid JSON"})
			return
		}

		// Object keys carry no user segment, so an id claimed by another
		// user must not be writable here.
		owner, err := store.Owner(r.Context(), id)
		if err != nil {
			log.WithError(err).Error("Failed to resolve drawing owner")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save drawing"})
			return
		}
		if owner != "" && owner != claims.Subject {
			log.Warn("Rejected upsert to a drawing owned by another user")
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Drawing is owned by another user"})
			return
		}

		// Default the name to the id; the payload may carry a nicer one.
		name := id
		var envelope drawingEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.AppState.Name != "" {
			name = envelope.AppState.Name
		}

		dataResult, err := client.UploadDrawing(r.Context(), id, json.RawMessage(body))
		if err != nil {
			log.WithError(err).Error("Failed to upload drawing")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store drawing"})
			return
		}

		var thumbnailURL string
		if envelope.Thumbnail != "" {
			thumbResult, err := client.UploadThumbnailBase64(r.Context(), id, envelope.Thumbnail)
			if err != nil {
				// The payload is safely stored; a missing thumbnail only
				// degrades list views.
				log.WithError(err).Warn("Failed to upload thumbnail")
			} else {
				thumbnailURL = thumbResult.URL
			}
		}

		drawing := &core.Drawing{
			ID:           id,
			UserID:       claims.Subject,
			Name:         name,
			DataURL:      dataResult.URL,
			ThumbnailURL: thumbnailURL,
		}
		if err := store.Save(r.Context(), drawing); err != nil {
			log.WithError(err).Error("Failed to save drawing metadata")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save drawing"})
			return
		}

		render.JSON(w, r, DrawingCreateResponse{
			ID:           id,
			DataURL:      dataResult.URL,
			ThumbnailURL: thumbnailURL,
		})
	}
}

// HandleGet streams the drawing's JSON payload from object storage.
func HandleGet(store core.DrawingStore, client *objectstore.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Drawing id is required"})
			return
		}
		log := logrus.WithFields(logrus.Fields{
			"userID":     claims.Subject,
			"drawing_id": id,
		})

		// Ownership check against the metadata store before touching objects.
		if _, err := store.Get(r.Context(), claims.Subject, id); err != nil {
			log.WithError(err).Warn("Drawing not found")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Drawing not found"})
			return
		}

		data, err := client.DownloadDrawing(r.Context(), id)
		if err != nil {
			log.WithError(err).Error("Failed to download drawing")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load drawing"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// HandleGetThumbnail streams the drawing's thumbnail image.
func HandleGetThumbnail(store core.DrawingStore, client *objectstore.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Drawing id is required"})
			return
		}

		if _, err := store.Get(r.Context(), claims.Subject, id); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Drawing not found"})
			return
		}

		image, err := client.DownloadThumbnail(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"drawing_id": id,
			}).Warn("Failed to download thumbnail")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Thumbnail not found"})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(image)
	}
}

// HandleDelete removes the drawing's objects best-effort, then its metadata.
// The client always sees success; partial storage failures are logged and the
// next delete attempt for the same id is harmless.
func HandleDelete(store core.DrawingStore, client *objectstore.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Drawing id is required"})
			return
		}
		log := logrus.WithFields(logrus.Fields{
			"userID":     claims.Subject,
			"drawing_id": id,
		})

		// Only the owner's drawings reach object storage. A lookup miss
		// still returns success so repeated deletes stay harmless, but
		// another user's objects are never touched.
		if _, err := store.Get(r.Context(), claims.Subject, id); err != nil {
			log.WithError(err).Warn("Drawing not found for caller, skipping object deletion")
			render.Status(r, http.StatusOK)
			render.JSON(w, r, map[string]string{"status": "deleted"})
			return
		}

		result := client.DeleteDrawing(r.Context(), id)
		if !result.Complete() {
			log.WithFields(logrus.Fields{
				"data_error":      result.DataErr,
				"thumbnail_error": result.ThumbnailErr,
			}).Warn("Drawing objects deleted partially")
		}

		if err := store.Delete(r.Context(), claims.Subject, id); err != nil {
			log.WithError(err).Warn("Failed to delete drawing metadata")
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}
