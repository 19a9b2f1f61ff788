package model

import "time"

// Check-in kinds accepted by the bulk sync endpoint.
const (
	CheckInCompleto = "completo"
	CheckInSoFotos  = "so_fotos"
)

// Customer holds the customer sub-record of a full check-in.
type Customer struct {
	Name  string `json:"nome,omitempty"`
	Phone string `json:"telefone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Vehicle holds the vehicle sub-record of a check-in.
type Vehicle struct {
	Plate string `json:"placa,omitempty"`
	Model string `json:"modelo,omitempty"`
	Color string `json:"cor,omitempty"`
	Year  string `json:"ano,omitempty"`
	KM    string `json:"km,omitempty"`
}

// WorkOrderInfo holds the work-order sub-record of a check-in.
type WorkOrderInfo struct {
	InternalNumber string `json:"numeroInterno,omitempty"`
	InitialStage   string `json:"etapaInicial,omitempty"`
	Observations   string `json:"observacoes,omitempty"`
}

// CheckInPhoto is one captured photo inside a pending check-in. Data is
// the inline-encoded image or a file reference.
type CheckInPhoto struct {
	ID        string `json:"id"`
	Name      string `json:"nome,omitempty"`
	Data      string `json:"arquivo,omitempty"`
	Extension string `json:"extensao,omitempty"`
}

// CheckInPhotos groups the two photo categories of a check-in.
type CheckInPhotos struct {
	Mandatory []CheckInPhoto `json:"padrao,omitempty"`
	Free      []CheckInPhoto `json:"livres,omitempty"`
}

// PendingCheckIn is a full check-in created offline, before any server
// record exists. It is removed only once the server confirms creation.
type PendingCheckIn struct {
	LocalID   string        `json:"id"`
	Type      string        `json:"tipo"`
	CreatedAt time.Time     `json:"criado_em"`
	Customer  Customer      `json:"cliente"`
	Vehicle   Vehicle       `json:"veiculo"`
	WorkOrder WorkOrderInfo `json:"os"`
	Photos    CheckInPhotos `json:"fotos"`
	Tries     int           `json:"tentativas"`
	LastError string        `json:"ultimo_erro,omitempty"`
}

// SubmitPayload converts the check-in to the wire shape the bulk sync
// endpoint expects: photo records reduced to id/name/data/extension and
// empty photo arrays omitted entirely.
func (c *PendingCheckIn) SubmitPayload() map[string]interface{} {
	workOrder := c.WorkOrder
	if workOrder.InternalNumber == "" {
		// The backend keys manual check-ins by internal number; the
		// capture flow falls back to the plate when none was typed.
		workOrder.InternalNumber = c.Vehicle.Plate
	}

	payload := map[string]interface{}{
		"tipo":     c.Type,
		"criadoEm": c.CreatedAt.UTC().Format(time.RFC3339),
		"cliente":  c.Customer,
		"veiculo":  c.Vehicle,
		"os":       workOrder,
	}

	fotos := map[string]interface{}{}
	if fotosPadrao := normalizePhotos(c.Photos.Mandatory); len(fotosPadrao) > 0 {
		fotos["padrao"] = fotosPadrao
	}
	if fotosLivres := normalizePhotos(c.Photos.Free); len(fotosLivres) > 0 {
		fotos["livres"] = fotosLivres
	}
	if len(fotos) > 0 {
		payload["fotos"] = fotos
	}

	return payload
}

func normalizePhotos(photos []CheckInPhoto) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(photos))
	for _, p := range photos {
		if p.Data == "" {
			continue
		}
		normalized := map[string]interface{}{
			"id":      p.ID,
			"arquivo": p.Data,
		}
		if p.Name != "" {
			normalized["nome"] = p.Name
		}
		if p.Extension != "" {
			normalized["extensao"] = p.Extension
		}
		out = append(out, normalized)
	}
	return out
}
