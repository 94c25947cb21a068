package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/filestore"
	apperrors "github.com/caldershaw/ragd/internal/pkg/errors"
)

// ExportService writes a conversation transcript to the configured file
// store as pretty-printed JSON.
type ExportService struct {
	conversations *ConversationStore
	store         filestore.Store
}

func NewExportService(conversations *ConversationStore, store filestore.Store) *ExportService {
	return &ExportService{conversations: conversations, store: store}
}

type ExportResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
}

func (s *ExportService) Export(ctx context.Context, conversationID string) (*ExportResult, error) {
	if s.store == nil {
		return nil, errors.Join(apperrors.ErrInvalid, errors.New("no file store configured"))
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	blob, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("conversation-%s-%s.json", conversationID, time.Now().Format("20060102T150405"))
	reader := nopSeekCloser{bytes.NewReader(blob)}
	if err := s.store.Save(ctx, key, reader, int64(len(blob))); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("conversation exported",
		zap.String("conversation_id", conversationID),
		zap.String("store", s.store.Type()), zap.String("key", key))
	return &ExportResult{Key: key, Location: s.store.Location(key)}, nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
