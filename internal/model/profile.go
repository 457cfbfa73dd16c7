package model

type (
	Profile struct {
		DisplayName string `json:"display_name,omitempty" bson:"display_name,omitempty"`
		PictureURL  string `json:"picture_url,omitempty" bson:"picture_url,omitempty"`
		ProfileKey  []byte `json:"profile_key,omitempty" bson:"profile_key,omitempty"`
		// seconds since epoch
		LastUpdated int64 `json:"last_updated,omitempty" bson:"last_updated,omitempty"`
	}
)
