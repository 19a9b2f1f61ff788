package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/Cator197/checkauto-saas/internal/model"
)

// WorkOrder is the subset of a server work-order record the agent reads.
type WorkOrder struct {
	Code         string
	Plate        string
	Model        string
	CurrentStage model.StageRef
}

// PhotoUpload is one decoded photo ready for the multipart endpoint.
type PhotoUpload struct {
	OSID     string
	StageID  *int64
	ConfigID *int64
	FileName string
	MimeType string
	Data     []byte
}

// PatchOS partially updates a work order.
func (c *APIClient) PatchOS(ctx context.Context, osID string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPatch, "/api/os/"+osID+"/", body, "application/json")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// UploadPhoto creates a photo record via the multipart endpoint.
func (c *APIClient) UploadPhoto(ctx context.Context, up PhotoUpload) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("os", up.OSID); err != nil {
		return fmt.Errorf("failed to build photo form: %w", err)
	}
	if up.StageID != nil {
		if err := w.WriteField("etapa", strconv.FormatInt(*up.StageID, 10)); err != nil {
			return fmt.Errorf("failed to build photo form: %w", err)
		}
	}
	if up.ConfigID != nil {
		if err := w.WriteField("config_foto", strconv.FormatInt(*up.ConfigID, 10)); err != nil {
			return fmt.Errorf("failed to build photo form: %w", err)
		}
	}

	part, err := w.CreateFormFile("arquivo", up.FileName)
	if err != nil {
		return fmt.Errorf("failed to build photo form: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return fmt.Errorf("failed to write photo bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish photo form: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/api/fotos-os/", buf.Bytes(), w.FormDataContentType())
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// UpsertObservation creates or replaces the observation for the work
// order's current stage.
func (c *APIClient) UpsertObservation(ctx context.Context, osID string, stageID int64, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"etapa": stageID,
		"texto": text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode observation: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/api/os/"+osID+"/observacao/", body, "application/json")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// AdvanceStage asks the server to advance the work order past the stage
// the device believes is current, returning the authoritative new stage.
func (c *APIClient) AdvanceStage(ctx context.Context, osID string, originStage int64, observation string) (*model.StageRef, error) {
	payload := map[string]interface{}{"etapa_origem": originStage}
	if observation != "" {
		payload["observacao"] = observation
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode advance request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/api/os/"+osID+"/avancar-etapa/", body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// Some deployments answer 200 with an empty body; the caller
		// falls back to a fresh fetch.
		return nil, nil
	}
	return normalizeStageField(decoded["etapa_atual"], decoded["etapa_atual_nome"]), nil
}

// SubmitCheckIns bulk-submits pending offline check-ins.
func (c *APIClient) SubmitCheckIns(ctx context.Context, pendentes []map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{"osPendentes": pendentes})
	if err != nil {
		return fmt.Errorf("failed to encode check-ins: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/api/sync/", body, "application/json")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// FetchOS fetches one work order.
func (c *APIClient) FetchOS(ctx context.Context, osID string) (*WorkOrder, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/os/"+osID+"/", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode work order: %w", err)
	}

	wo := &WorkOrder{
		Code:  stringField(decoded, "codigo"),
		Plate: stringField(decoded, "placa"),
		Model: stringField(decoded, "modelo_veiculo"),
	}
	if stage := normalizeStageField(decoded["etapa_atual"], decoded["etapa_atual_nome"]); stage != nil {
		wo.CurrentStage = *stage
	} else {
		wo.CurrentStage = model.StageRef{Name: "-"}
	}
	return wo, nil
}

// FetchVehicles fetches the in-production list snapshot.
func (c *APIClient) FetchVehicles(ctx context.Context) ([]model.VehicleInProduction, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/pwa/veiculos-em-producao/", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var decoded []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode vehicle list: %w", err)
	}

	vehicles := make([]model.VehicleInProduction, 0, len(decoded))
	for _, item := range decoded {
		v := model.VehicleInProduction{
			OSID:  stringField(item, "os_id"),
			Code:  stringField(item, "codigo"),
			Plate: stringField(item, "placa"),
			Model: stringField(item, "modelo_veiculo"),
		}
		if v.OSID == "" {
			// Older backends send the raw id under "id".
			v.OSID = stringField(item, "id")
		}
		if stage := normalizeStageField(item["etapa_atual"], item["etapa_atual_nome"]); stage != nil {
			v.Stage = *stage
		} else {
			v.Stage = model.StageRef{Name: "-"}
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// FetchStages fetches the ordered stage catalog.
func (c *APIClient) FetchStages(ctx context.Context) ([]model.Stage, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/etapas/", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var stages []model.Stage
	if err := json.NewDecoder(resp.Body).Decode(&stages); err != nil {
		return nil, fmt.Errorf("failed to decode stage catalog: %w", err)
	}
	return stages, nil
}

// Ping reports raw reachability of the backend. Any HTTP answer counts;
// only transport failures mean offline.
func (c *APIClient) Ping(ctx context.Context, path string) bool {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "", c.tokens.AccessToken())
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// normalizeStageField accepts the stage field in any of its wire shapes
// (numeric id, {id, nome} object, or id plus a separate nome field).
func normalizeStageField(stage, name interface{}) *model.StageRef {
	if stage == nil {
		return nil
	}

	ref := &model.StageRef{Name: "-"}
	if obj, ok := stage.(map[string]interface{}); ok {
		if n, ok := obj["nome"].(string); ok && n != "" {
			ref.Name = n
		}
	}
	if n, ok := name.(string); ok && n != "" {
		ref.Name = n
	}

	if id, err := model.CoerceStageID(stage); err == nil {
		ref.ID = &id
	} else if ref.Name == "-" {
		return nil
	}
	return ref
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
