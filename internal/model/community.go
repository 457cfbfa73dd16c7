package model

type (
	CommunityReaction struct {
		Count    int64    `json:"count"`
		Reactors []string `json:"reactors"`
		You      bool     `json:"you"`
		Index    int64    `json:"index"`
	}

	// CommunityMessage is a room post as returned by a community server.
	CommunityMessage struct {
		ID        int64                        `json:"id"`
		SessionID string                       `json:"session_id"`
		Posted    float64                      `json:"posted"`
		Seqno     int64                        `json:"seqno"`
		Deleted   bool                         `json:"deleted,omitempty"`
		Data      string                       `json:"data,omitempty"`
		Signature string                       `json:"signature,omitempty"`
		Reactions map[string]CommunityReaction `json:"reactions,omitempty"`
	}

	CommunityDirectMessage struct {
		ID        int64  `json:"id"`
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
		PostedAt  int64  `json:"posted_at"`
		ExpiresAt int64  `json:"expires_at,omitempty"`
		Message   string `json:"message"`
	}

	CommunityPost struct {
		Sender    string   `json:"session_id"`
		Timestamp int64    `json:"timestamp"`
		Data      string   `json:"data"`
		Signature string   `json:"signature,omitempty"`
		WhisperTo string   `json:"whisper_to,omitempty"`
		Whisper   bool     `json:"whisper_mods,omitempty"`
		FileIDs   []string `json:"files,omitempty"`
	}

	CommunityPostResult struct {
		ID int64 `json:"id"`
		// milliseconds since epoch
		PostedAt int64 `json:"posted_at"`
	}

	ReactionRecord struct {
		MessageID    int64  `json:"message_id" bson:"message_id"`
		Author       string `json:"author" bson:"author"`
		Emoji        string `json:"emoji" bson:"emoji"`
		ServerID     int64  `json:"server_id" bson:"server_id"`
		Count        int64  `json:"count" bson:"count"`
		SortID       int64  `json:"sort_id" bson:"sort_id"`
		DateSent     int64  `json:"date_sent" bson:"date_sent"`
		DateReceived int64  `json:"date_received" bson:"date_received"`
	}
)

// CommunityCapabilityBlind is advertised by servers that require blinded sender ids.
const CommunityCapabilityBlind = "blind"
