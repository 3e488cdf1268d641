package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"inventorycore/internal/blob"
	"inventorycore/pkg/domain"
)

// AttachmentPrefix is the key namespace of record attachments.
const AttachmentPrefix = "attachments/"

func attachmentPrefix(id domain.GlobalID) string {
	return AttachmentPrefix + string(id) + "/"
}

// Attachment metadata keys.
const (
	MetaRecord   = "record"
	MetaFilename = "filename"
)

// Attach stores r as an attachment of id under
// attachments/<globalId>/<uuid>/<basename>.
func (s *Service) Attach(ctx context.Context, id domain.GlobalID, name string, r io.Reader, contentType string) (blob.Info, error) {
	var info blob.Info
	_, err := s.run(ctx, OpAttachFile, &auditTarget{action: domain.ActionUpdate, id: id}, func(ctx context.Context) (domain.Result, error) {
		if s.blobs == nil {
			return domain.Result{}, ErrNoBlobStore
		}
		rec, ok := s.store.GetRecord(id)
		if !ok {
			return domain.Result{}, domain.NotFoundError{ID: id}
		}
		base := path.Base(strings.ReplaceAll(name, "\\", "/"))
		if base == "." || base == "/" || base == "" {
			return domain.Result{}, errors.Wrapf(blob.ErrInvalidKey, "attachment name %q", name)
		}
		key := fmt.Sprintf("%s%s/%s", attachmentPrefix(rec.GlobalID), uuid.NewString(), base)
		var err error
		info, err = s.blobs.Put(ctx, key, r, blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{MetaRecord: string(rec.GlobalID), MetaFilename: base},
		})
		return domain.Result{}, err
	})
	if err != nil {
		return blob.Info{}, err
	}
	s.logger.Info("attachment stored", "record", id, "key", info.Key, "size", info.Size)
	return info, nil
}

// Attachments lists the attachments of id ordered by key.
func (s *Service) Attachments(ctx context.Context, id domain.GlobalID) ([]blob.Info, error) {
	var out []blob.Info
	_, err := s.run(ctx, OpListAttachments, nil, func(ctx context.Context) (domain.Result, error) {
		if s.blobs == nil {
			return domain.Result{}, ErrNoBlobStore
		}
		var err error
		out, err = s.blobs.List(ctx, attachmentPrefix(id))
		return domain.Result{}, err
	})
	return out, err
}

// OpenAttachment streams the attachment stored under key. Keys outside the
// attachment namespace are rejected. The caller closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	var (
		info blob.Info
		rc   io.ReadCloser
	)
	_, err := s.run(ctx, OpOpenAttachment, nil, func(ctx context.Context) (domain.Result, error) {
		if s.blobs == nil {
			return domain.Result{}, ErrNoBlobStore
		}
		if !strings.HasPrefix(key, AttachmentPrefix) {
			return domain.Result{}, errors.Wrapf(blob.ErrInvalidKey, "%q is not an attachment", key)
		}
		var err error
		info, rc, err = s.blobs.Get(ctx, key)
		return domain.Result{}, err
	})
	return info, rc, err
}

// AttachmentURL returns a time-limited download URL for key.
func (s *Service) AttachmentURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	if !strings.HasPrefix(key, AttachmentPrefix) {
		return "", errors.Wrapf(blob.ErrInvalidKey, "%q is not an attachment", key)
	}
	return s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: expiry})
}

func (s *Service) removeAttachments(ctx context.Context, id domain.GlobalID) {
	infos, err := s.blobs.List(ctx, attachmentPrefix(id))
	if err != nil {
		s.logger.Warn("list attachments failed", "record", id, "error", err.Error())
		return
	}
	for _, info := range infos {
		if _, err := s.blobs.Delete(ctx, info.Key); err != nil {
			s.logger.Warn("delete attachment failed", "record", id, "key", info.Key, "error", err.Error())
		}
	}
}
