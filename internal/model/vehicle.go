package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Stage is one ordered step of the workshop workflow.
type Stage struct {
	ID        int64  `json:"id"`
	Name      string `json:"nome"`
	Order     int    `json:"ordem"`
	IsCheckIn bool   `json:"is_checkin,omitempty"`
}

// VehicleInProduction is one row of the server's in-production snapshot.
type VehicleInProduction struct {
	OSID  string   `json:"os_id"`
	Code  string   `json:"codigo"`
	Plate string   `json:"placa"`
	Model string   `json:"modelo_veiculo"`
	Stage StageRef `json:"etapa_atual"`
}

// VehicleListItem is the renderable projection of a vehicle: the server
// snapshot merged with the device's pending overlay. Not persisted,
// recomputed on every read.
type VehicleListItem struct {
	VehicleInProduction
	PendingSync      bool   `json:"pendente_sync"`
	QueuedOperations int    `json:"operacoes_pendentes"`
	NextStage        *Stage `json:"proxima_etapa,omitempty"`
	FinalStage       bool   `json:"etapa_final,omitempty"`
}

// CoerceStageID normalizes a stage id from any of the shapes older local
// records and the wire produce (number, numeric string, json.Number, or
// a {id, nome} object) into the numeric form the server expects.
func CoerceStageID(v interface{}) (int64, error) {
	switch value := v.(type) {
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case float64:
		return int64(value), nil
	case json.Number:
		return value.Int64()
	case string:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("stage id %q is not numeric", value)
		}
		return id, nil
	case map[string]interface{}:
		if id, ok := value["id"]; ok {
			return CoerceStageID(id)
		}
		return 0, fmt.Errorf("stage object carries no id")
	case nil:
		return 0, fmt.Errorf("stage id is missing")
	default:
		return 0, fmt.Errorf("stage id has unsupported type %T", v)
	}
}
