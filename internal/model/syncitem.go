package model

import "time"

// Queue operation types. The values are the wire names the production
// backend knows; they also prefix generated item ids.
const (
	TypePatchOS          = "PATCH_OS"
	TypePostFotoOS       = "POST_FOTO_OS"
	TypeUpsertObservacao = "UPSERT_OBSERVACAO"
	TypeAvancarEtapa     = "AVANCAR_ETAPA"
	TypeSyncOS           = "SYNC_OS"
)

// SyncItem is one pending remote mutation awaiting replay against the API.
type SyncItem struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	TargetID  string                 `json:"target_id"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"criado_em"`
	Tries     int                    `json:"tentativas"`
	LastError string                 `json:"ultimo_erro,omitempty"`
}

// SyncItemPatch is a partial update merged into an existing queue item.
// Nil fields are left untouched.
type SyncItemPatch struct {
	Payload   map[string]interface{}
	Tries     *int
	LastError *string
}

// KnownType reports whether t is one of the queue operation types.
func KnownType(t string) bool {
	switch t {
	case TypePatchOS, TypePostFotoOS, TypeUpsertObservacao, TypeAvancarEtapa, TypeSyncOS:
		return true
	}
	return false
}
