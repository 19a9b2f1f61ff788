package model

import "time"

// StageRef identifies a workflow stage. ID is nil when the device has
// never learned the stage (fresh offline entry).
type StageRef struct {
	ID   *int64 `json:"id"`
	Name string `json:"nome"`
}

// ServerPhoto is a photo the server has already confirmed for a work order.
type ServerPhoto struct {
	ID       int64  `json:"id"`
	ThumbURL string `json:"thumb_url,omitempty"`
	StageID  *int64 `json:"etapa_id,omitempty"`
}

// OfflinePhoto is a photo captured on the device and not yet uploaded.
// Data holds the inline-encoded image (data URL) exactly as captured.
type OfflinePhoto struct {
	ID       string `json:"id"`
	Name     string `json:"nome,omitempty"`
	Data     string `json:"dataUrl"`
	StageID  *int64 `json:"etapa_id,omitempty"`
	ConfigID *int64 `json:"config_foto,omitempty"`
}

// ProductionEntry is the per-work-order local mirror: server-confirmed
// fields plus offline-pending overlays.
type ProductionEntry struct {
	OSID  string `json:"os_id"`
	Code  string `json:"codigo"`
	Plate string `json:"placa"`
	Model string `json:"modelo_veiculo"`

	CurrentStage StageRef `json:"etapa_atual"`

	// Server-confirmed state.
	ServerConfigsDone []int64       `json:"configs_atendidas_servidor,omitempty"`
	ServerPhotos      []ServerPhoto `json:"fotos_livres_servidor,omitempty"`

	// Offline overlays.
	OfflineConfigsDone []int64        `json:"configs_atendidas_offline,omitempty"`
	OfflinePhotos      []OfflinePhoto `json:"fotos_livres_offline,omitempty"`
	ObservationText    string         `json:"observacao_etapa,omitempty"`
	AdvanceRequested   bool           `json:"avancar_solicitado"`
	QueuedOperationIDs []string       `json:"operacoes_na_fila,omitempty"`

	PendingSync  bool       `json:"pendente_sync"`
	LastSyncedAt *time.Time `json:"sincronizado_em,omitempty"`
	UpdatedAt    time.Time  `json:"atualizado_em"`
}

// NewProductionEntry returns a fresh entry for a work order the device
// has not cached yet.
func NewProductionEntry(osID string) *ProductionEntry {
	return &ProductionEntry{
		OSID:         osID,
		Code:         "OS " + osID,
		CurrentStage: StageRef{Name: "-"},
	}
}

// HasPendingOverlay reports whether any offline-pending condition holds.
// PendingSync must always equal this; Recompute enforces it.
func (e *ProductionEntry) HasPendingOverlay() bool {
	return e.AdvanceRequested || len(e.OfflinePhotos) > 0 || len(e.QueuedOperationIDs) > 0
}

// Recompute refreshes the derived PendingSync flag. Every mutation of an
// entry must go through this, never set PendingSync by hand.
func (e *ProductionEntry) Recompute() {
	e.PendingSync = e.HasPendingOverlay()
}

// RemoveQueuedOperation drops one operation id from the overlay.
func (e *ProductionEntry) RemoveQueuedOperation(opID string) {
	kept := e.QueuedOperationIDs[:0]
	for _, id := range e.QueuedOperationIDs {
		if id != opID {
			kept = append(kept, id)
		}
	}
	e.QueuedOperationIDs = kept
}

// RemoveOfflinePhoto drops the offline photo with the given local id and
// promotes its checklist config, if any, to the server-confirmed set.
func (e *ProductionEntry) RemoveOfflinePhoto(photoID string) {
	kept := e.OfflinePhotos[:0]
	for _, p := range e.OfflinePhotos {
		if p.ID != photoID {
			kept = append(kept, p)
			continue
		}
		if p.ConfigID != nil {
			e.promoteConfig(*p.ConfigID)
		}
	}
	e.OfflinePhotos = kept
}

func (e *ProductionEntry) promoteConfig(configID int64) {
	kept := e.OfflineConfigsDone[:0]
	for _, id := range e.OfflineConfigsDone {
		if id != configID {
			kept = append(kept, id)
		}
	}
	e.OfflineConfigsDone = kept

	for _, id := range e.ServerConfigsDone {
		if id == configID {
			return
		}
	}
	e.ServerConfigsDone = append(e.ServerConfigsDone, configID)
}
