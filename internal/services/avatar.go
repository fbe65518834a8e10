package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/storage"
)

// MaxAvatarBytes bounds the encoded avatar accepted from clients.
const MaxAvatarBytes = 16 << 20

const avatarKeyPrefix = "avatars/"

var avatarExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var errInvalidAvatar = errors.New("invalid avatar encoding")

// ObjectStore is the subset of object storage used for avatars.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// Avatar is a readable avatar image. Callers must close Body.
type Avatar struct {
	Body        io.ReadCloser
	ContentType string
}

// decodeAvatar accepts a data URL ("data:image/png;base64,...") or bare
// base64 and returns the image bytes and media type.
func decodeAvatar(raw string) ([]byte, string, error) {
	payload := strings.TrimSpace(raw)
	declared := ""
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", errInvalidAvatar
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errInvalidAvatar
	}
	if len(data) == 0 {
		return nil, "", errInvalidAvatar
	}

	contentType := http.DetectContentType(data)
	if _, ok := avatarExtensions[contentType]; !ok {
		return nil, "", errInvalidAvatar
	}
	if declared != "" && declared != contentType {
		return nil, "", errInvalidAvatar
	}
	return data, contentType, nil
}

func isAvatarKey(ref string) bool {
	return strings.HasPrefix(ref, avatarKeyPrefix)
}

func avatarKey(userID int, contentType string) string {
	return fmt.Sprintf("%s%d/%s.%s", avatarKeyPrefix, userID, uuid.NewString(), avatarExtensions[contentType])
}

// prepareAvatar validates raw and returns the reference to persist. With
// object storage configured the image is uploaded and its key returned.
func (s *UserService) prepareAvatar(ctx context.Context, userID int, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", newError(ErrValidation, msgAvatarRequired)
	}
	if len(raw) > MaxAvatarBytes {
		return "", newError(ErrValidation, msgAvatarTooLarge)
	}
	if s.avatars == nil {
		return raw, nil
	}

	data, contentType, err := decodeAvatar(raw)
	if err != nil {
		return "", newError(ErrValidation, msgAvatarInvalid)
	}
	key := avatarKey(userID, contentType)
	if err := s.avatars.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return key, nil
}

// discardAvatar removes a replaced avatar object. Inline avatars need no cleanup.
func (s *UserService) discardAvatar(ctx context.Context, ref *string) {
	if s.avatars == nil || ref == nil || !isAvatarKey(*ref) {
		return
	}
	if err := s.avatars.Delete(ctx, *ref); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("key", *ref).Msg("delete replaced avatar")
	}
}

// Avatar opens the avatar image of user id.
func (s *UserService) Avatar(ctx context.Context, id int) (Avatar, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return Avatar{}, err
	}
	if user.Avatar == nil || strings.TrimSpace(*user.Avatar) == "" {
		return Avatar{}, newError(ErrNotFound, msgAvatarNotFound)
	}

	ref := *user.Avatar
	if isAvatarKey(ref) && s.avatars != nil {
		obj, err := s.avatars.Get(ctx, ref)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return Avatar{}, newError(ErrNotFound, msgAvatarNotFound)
			}
			return Avatar{}, fmt.Errorf("load avatar: %w", err)
		}
		return Avatar{Body: obj.Body, ContentType: obj.ContentType}, nil
	}

	data, contentType, err := decodeAvatar(ref)
	if err != nil {
		return Avatar{}, newError(ErrNotFound, msgAvatarNotFound)
	}
	return Avatar{Body: io.NopCloser(bytes.NewReader(data)), ContentType: contentType}, nil
}
