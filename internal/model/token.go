package model

import (
	"errors"
	"time"
)

// TokenRecord is a pre-provisioned license token and its binding state.
// DeviceID is nil while the token is unbound; once a device claims the slot
// only that same device can bind again.
type TokenRecord struct {
	Token          string    `db:"token" json:"Token"`
	Expiry         string    `db:"expiry" json:"Expiry"` // calendar date, YYYY-MM-DD
	IsValid        bool      `db:"is_valid" json:"IsValid"`
	DeviceID       *string   `db:"device_id" json:"DeviceId"`
	MaxUsers       int       `db:"max_users" json:"MaxUsers"`
	VideoLinks     []string  `db:"-" json:"VideoLinks"`
	VideoFileNames []*string `db:"-" json:"VideoFileNames"`
}

// VideoInfo pairs element i of VideoLinks with element i of VideoFileNames.
type VideoInfo struct {
	Link     string  `json:"link"`
	FileName *string `json:"fileName"`
}

// VideoInfos projects the parallel sequences into (link, fileName) pairs.
// The two slices are maintained at equal length by the repository; a nil
// FileName means no file name was supplied for that index.
func (r *TokenRecord) VideoInfos() []VideoInfo {
	infos := make([]VideoInfo, 0, len(r.VideoLinks))
	for i, link := range r.VideoLinks {
		var fileName *string
		if i < len(r.VideoFileNames) {
			fileName = r.VideoFileNames[i]
		}
		infos = append(infos, VideoInfo{Link: link, FileName: fileName})
	}
	return infos
}

// ExpiryDateLayout is the stored format of TokenRecord.Expiry.
const ExpiryDateLayout = "2006-01-02"

// DefaultExpiry returns the expiry date assigned to seeded tokens:
// five years from now.
func DefaultExpiry(now time.Time) string {
	return now.AddDate(5, 0, 0).Format(ExpiryDateLayout)
}

// Token errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExists   = errors.New("token already exists")
)

// BindResult is the outcome of a bind attempt. Bound=false is the soft
// rejection: another device occupies the slot and the stored record was left
// untouched. It is not an error.
type BindResult struct {
	Record *TokenRecord
	Bound  bool
}

// CreateTokenRequest is the request body for POST /api/token/add.
type CreateTokenRequest struct {
	NewToken   string `json:"newToken"`
	ExpiryDate string `json:"expiryDate"`
	MaxUsers   *int   `json:"maxUsers"`
}

// UpdateMaxUsersRequest is the request body for POST /api/token/updateMaxUsers.
type UpdateMaxUsersRequest struct {
	Token    string `json:"token"`
	MaxUsers *int   `json:"maxUsers"`
}

// UpdateAllRequest is the request body for POST /api/token/updateAll.
// DeviceID stays nullable: null unbinds the token. The other fields are
// pointers so that an absent field can be told apart from its zero value.
type UpdateAllRequest struct {
	Token      string  `json:"token"`
	ExpiryDate string  `json:"expiryDate"`
	IsValid    *bool   `json:"isValid"`
	DeviceID   *string `json:"deviceId"`
	MaxUsers   *int    `json:"maxUsers"`
}

// UpdateVideoInfoRequest is the request body for POST /api/token/update-video-info.
type UpdateVideoInfoRequest struct {
	Token     string       `json:"token"`
	VideoInfo *[]VideoInfo `json:"videoInfo"`
}

// TokenResponse is the public projection of a TokenRecord returned by the
// bind and status endpoints.
type TokenResponse struct {
	Token     string      `json:"Token"`
	Expiry    string      `json:"Expiry"`
	IsValid   bool        `json:"IsValid"`
	DeviceID  *string     `json:"DeviceId"`
	MaxUsers  int         `json:"MaxUsers"`
	VideoInfo []VideoInfo `json:"VideoInfo"`
}

// NewTokenResponse builds the public projection. isValid comes from the
// operation outcome rather than the stored flag so that a rejected bind can
// report IsValid=false over an otherwise valid record.
func NewTokenResponse(r *TokenRecord, isValid bool) *TokenResponse {
	return &TokenResponse{
		Token:     r.Token,
		Expiry:    r.Expiry,
		IsValid:   isValid,
		DeviceID:  r.DeviceID,
		MaxUsers:  r.MaxUsers,
		VideoInfo: r.VideoInfos(),
	}
}

// UpdateMaxUsersResponse is returned by POST /api/token/updateMaxUsers.
type UpdateMaxUsersResponse struct {
	Token    string `json:"Token"`
	MaxUsers int    `json:"MaxUsers"`
}

// UpdateAllResponse is returned by POST /api/token/updateAll.
type UpdateAllResponse struct {
	Token    string  `json:"Token"`
	Expiry   string  `json:"Expiry"`
	IsValid  bool    `json:"IsValid"`
	DeviceID *string `json:"DeviceId"`
	MaxUsers int     `json:"MaxUsers"`
}

// UpdateVideoInfoResponse is returned by POST /api/token/update-video-info.
type UpdateVideoInfoResponse struct {
	Message   string      `json:"message"`
	Token     string      `json:"Token"`
	VideoInfo []VideoInfo `json:"VideoInfo"`
}
