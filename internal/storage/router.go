package storage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/filedock/go-file-backend/internal/domain"
)

// StoreInput describes one blob to be persisted.
type StoreInput struct {
	Data           []byte
	FileName       string
	MimeType       string
	UploaderChatID int64
	// Preference is the uploader's persisted backend choice.
	Preference domain.StorageType
	// CustomSuffix, when set, replaces the timestamp component of the
	// generated key. Repeated uploads with the same suffix overwrite
	// each other; that is documented behavior, not a bug.
	CustomSuffix *string
}

// StoreResult reports where the blob landed. StorageType may differ from
// the requested preference when the object backend failed and the upload
// fell back to the relay.
type StoreResult struct {
	URL            string
	BlobRef        string
	StorageType    domain.StorageType
	RelayMessageID int
}

// Router decides, stores, and names a blob on upload. It performs no
// metadata writes; recording the resulting FileRecord is the caller's job.
type Router struct {
	Objects ObjectStore // nil when the deployment runs relay-only
	Relay   Relay
	BaseURL string
	Log     zerolog.Logger
}

// Store persists the blob on the preferred backend. An object-backend
// failure falls back to the relay automatically and silently for the
// caller; the fallback is logged and counted so operators can see it.
func (r *Router) Store(ctx context.Context, in StoreInput) (StoreResult, error) {
	key := BuildKey(in.CustomSuffix, in.MimeType, in.FileName)

	if in.Preference == domain.StorageObject && r.Objects != nil {
		err := r.Objects.Put(ctx, key, in.Data, in.MimeType)
		if err == nil {
			storedBlobs.WithLabelValues(string(domain.StorageObject)).Inc()
			return StoreResult{
				URL:         LocatorFor(r.BaseURL, key),
				BlobRef:     key,
				StorageType: domain.StorageObject,
				// relay_message_id stays at its 0 sentinel for object blobs
			}, nil
		}
		fallbacks.Inc()
		r.Log.Warn().Err(err).Str("key", key).Int64("chat_id", in.UploaderChatID).
			Msg("object backend put failed, falling back to relay")
	}

	res, err := r.Relay.Send(ctx, in.Data, in.FileName, Classify(in.MimeType))
	if err != nil {
		return StoreResult{}, err
	}
	storedBlobs.WithLabelValues(string(domain.StorageRelay)).Inc()
	return StoreResult{
		URL:            LocatorFor(r.BaseURL, key),
		BlobRef:        res.AttachmentRef,
		StorageType:    domain.StorageRelay,
		RelayMessageID: res.MessageID,
	}, nil
}
