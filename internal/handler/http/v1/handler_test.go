package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/mock/gomock"

	"github.com/ViniMesquitaa/map-medical/internal/config"
	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/service"
	"github.com/ViniMesquitaa/map-medical/internal/service/mocks"
)

var apiKeyHeader = map[string]string{"X-API-Key": "test-api-key"}

// newTestHandler создает новый экземпляр Handler с мокированными сервисами
func newTestHandler(t *testing.T) (*Handler, *mocks.MockDispatchService, *mocks.MockResponderService, *gin.Engine) {
	ctrl := gomock.NewController(t)
	mockDispatch := mocks.NewMockDispatchService(ctrl)
	mockResponders := mocks.NewMockResponderService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys: []string{"test-api-key"},
	}

	handler := NewHandler(mockDispatch, mockResponders, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router)

	return handler, mockDispatch, mockResponders, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestEmergency_Success(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	id := uuid.New()

	mockDispatch.EXPECT().
		Submit(gomock.Any(), "cardiac", models.Coordinates{Latitude: 10, Longitude: 20}).
		Return(&service.SubmitResult{
			Request: &models.EmergencyRequest{ID: id, Address: "123 Example St", Status: models.StatusPending},
		}, nil).
		Times(1)

	body := `{"emergencyType":"cardiac","location":{"latitude":10.0,"longitude":20.0}}`
	w := makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.RequestID)
	assert.Equal(t, "123 Example St", resp.Address)
	assert.Equal(t, msgSubmitted, resp.Message)
	assert.Empty(t, resp.Warnings)
}

func TestRequestEmergency_WithWarnings(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)

	mockDispatch.EXPECT().
		Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.SubmitResult{
			Request:  &models.EmergencyRequest{ID: uuid.New(), Address: "10.000000, 20.000000 (geohash s1z0gs3)"},
			Warnings: []string{"address could not be resolved: timeout"},
		}, nil)

	body := `{"emergencyType":"fall","location":{"latitude":10,"longitude":20}}`
	w := makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, msgSubmittedIssues, resp.Message)
	assert.Equal(t, []string{"address could not be resolved: timeout"}, resp.Warnings)
}

func TestRequestEmergency_ZeroCoordinatesAccepted(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)

	mockDispatch.EXPECT().
		Submit(gomock.Any(), "other", models.Coordinates{}).
		Return(&service.SubmitResult{Request: &models.EmergencyRequest{ID: uuid.New()}}, nil)

	body := `{"emergencyType":"other","location":{"latitude":0,"longitude":0}}`
	w := makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestEmergency_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"emergencyType": "cardiac"`},
		{name: "missing type", body: `{"location":{"latitude":10,"longitude":20}}`},
		{name: "missing location", body: `{"emergencyType":"cardiac"}`},
		{name: "missing longitude", body: `{"emergencyType":"cardiac","location":{"latitude":10}}`},
		{name: "latitude out of range", body: `{"emergencyType":"cardiac","location":{"latitude":95,"longitude":20}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mockDispatch, _, router := newTestHandler(t)
			mockDispatch.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

			w := makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestRequestEmergency_ServiceError(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)

	mockDispatch.EXPECT().
		Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("service: could not create request: %w", service.ErrInternal))

	body := `{"emergencyType":"cardiac","location":{"latitude":10,"longitude":20}}`
	w := makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestRespondToRequest_Success(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	id := uuid.New()

	mockDispatch.EXPECT().
		Respond(gomock.Any(), id, models.StatusAccepted).
		Return(&models.EmergencyRequest{
			ID:          id,
			Status:      models.StatusAccepted,
			Address:     "123 Example St",
			Coordinates: models.Coordinates{Latitude: 10, Longitude: 20},
			CreatedAt:   time.Now(),
		}, nil)

	body := fmt.Sprintf(`{"requestId":%q,"response":"accepted"}`, id)
	w := makeRequest(router, "POST", "/respondToRequest", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RespondResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Message)
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, id, resp.RequestID)
	assert.Equal(t, "123 Example St", resp.Address)
	require.NotNil(t, resp.Location, "doctor app centres the map on the patient")
	assert.Equal(t, 10.0, resp.Location.Latitude)
	assert.Equal(t, 20.0, resp.Location.Longitude)
}

func TestRespondToRequest_SuccessWithoutReread(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	id := uuid.New()
	respondedAt := time.Now()

	// Переход применен, но заявку перечитать не удалось
	mockDispatch.EXPECT().
		Respond(gomock.Any(), id, models.StatusRejected).
		Return(&models.EmergencyRequest{ID: id, Status: models.StatusRejected, RespondedAt: &respondedAt}, nil)

	body := fmt.Sprintf(`{"requestId":%q,"response":"rejected"}`, id)
	w := makeRequest(router, "POST", "/respondToRequest", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"location"`)
	assert.Contains(t, w.Body.String(), `"status":"rejected"`)
}

func TestRespondToRequest_Conflict(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	id := uuid.New()

	mockDispatch.EXPECT().
		Respond(gomock.Any(), id, models.StatusRejected).
		Return(nil, &service.ConflictError{RequestID: id, Current: models.StatusAccepted})

	body := fmt.Sprintf(`{"requestId":%q,"response":"rejected"}`, id)
	w := makeRequest(router, "POST", "/respondToRequest", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp ConflictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
}

func TestRespondToRequest_NotFound(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	id := uuid.New()

	mockDispatch.EXPECT().
		Respond(gomock.Any(), id, models.StatusAccepted).
		Return(nil, fmt.Errorf("service: request %s: %w", id, service.ErrNotFound))

	body := fmt.Sprintf(`{"requestId":%q,"response":"accepted"}`, id)
	w := makeRequest(router, "POST", "/respondToRequest", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondToRequest_NonUUIDIsNotFound(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	mockDispatch.EXPECT().Respond(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/respondToRequest", bytes.NewBufferString(`{"requestId":"nonexistent","response":"accepted"}`))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondToRequest_InvalidDecision(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	mockDispatch.EXPECT().Respond(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	body := fmt.Sprintf(`{"requestId":%q,"response":"maybe"}`, uuid.New())
	w := makeRequest(router, "POST", "/respondToRequest", bytes.NewBufferString(body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRequests(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	responded := created.Add(time.Minute)
	first := &models.EmergencyRequest{
		ID: uuid.New(), EmergencyType: "cardiac", Address: "123 Example St",
		Coordinates: models.Coordinates{Latitude: 10, Longitude: 20},
		Status:      models.StatusAccepted, CreatedAt: created, RespondedAt: &responded,
	}
	second := &models.EmergencyRequest{ID: uuid.New(), EmergencyType: "fall", Status: models.StatusPending, CreatedAt: created.Add(time.Second)}

	mockDispatch.EXPECT().ListHistory(gomock.Any()).Return([]*models.EmergencyRequest{first, second}, nil)

	w := makeRequest(router, "GET", "/getRequests", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []RequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, first.ID, resp[0].ID)
	assert.Equal(t, "accepted", resp[0].Status)
	assert.Equal(t, "123 Example St", resp[0].Address)
	assert.True(t, created.Equal(resp[0].Timestamp))
	require.NotNil(t, resp[0].RespondedAt)
	assert.Equal(t, second.ID, resp[1].ID)
	assert.Nil(t, resp[1].RespondedAt)
}

func TestGetRequests_Empty(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	mockDispatch.EXPECT().ListHistory(gomock.Any()).Return([]*models.EmergencyRequest{}, nil)

	w := makeRequest(router, "GET", "/getRequests", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetRequest_NotFound(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	id := uuid.New()
	mockDispatch.EXPECT().GetRequest(gomock.Any(), id).Return(nil, service.ErrNotFound)

	w := makeRequest(router, "GET", "/getRequest/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveRequest(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	known, unknown := uuid.New(), uuid.New()

	mockDispatch.EXPECT().Remove(gomock.Any(), known).Return(nil)
	mockDispatch.EXPECT().Remove(gomock.Any(), unknown).Return(service.ErrNotFound)

	w := makeRequest(router, "DELETE", "/removeRequest/"+known.String(), nil, apiKeyHeader)
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(router, "DELETE", "/removeRequest/"+unknown.String(), nil, apiKeyHeader)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = makeRequest(router, "DELETE", "/removeRequest/not-a-uuid", nil, apiKeyHeader)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveRequest_Unauthorized(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	mockDispatch.EXPECT().Remove(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "DELETE", "/removeRequest/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = makeRequest(router, "DELETE", "/removeRequest/"+uuid.NewString(), nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRemoveAllRequests(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	mockDispatch.EXPECT().RemoveAll(gomock.Any()).Return(int64(4), nil)

	w := makeRequest(router, "DELETE", "/removeAllRequests", nil, map[string]string{"Authorization": "Bearer test-api-key"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp RemoveAllResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Deleted)
}

func TestRemoveAllRequests_ServiceError(t *testing.T) {
	_, mockDispatch, _, router := newTestHandler(t)
	mockDispatch.EXPECT().RemoveAll(gomock.Any()).Return(int64(0), errors.New("db down"))

	w := makeRequest(router, "DELETE", "/removeAllRequests", nil, apiKeyHeader)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRegisterResponder(t *testing.T) {
	_, _, mockResponders, router := newTestHandler(t)
	id := uuid.New()

	mockResponders.EXPECT().
		Register(gomock.Any(), "Dr. House", "ExponentPushToken[abc]").
		Return(&models.ResponderDevice{ID: id, Name: "Dr. House", DeviceToken: "ExponentPushToken[abc]", Active: true}, nil)

	body := `{"name":"Dr. House","deviceToken":"ExponentPushToken[abc]"}`
	w := makeRequest(router, "POST", "/responders", bytes.NewBufferString(body), apiKeyHeader)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp ResponderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.True(t, resp.Active)
}

func TestRegisterResponder_InvalidToken(t *testing.T) {
	_, _, mockResponders, router := newTestHandler(t)

	mockResponders.EXPECT().
		Register(gomock.Any(), gomock.Any(), "TOKEN_EXPO_DO_MEDICO").
		Return(nil, fmt.Errorf("%w: bad token", service.ErrValidation))

	body := `{"name":"Dr. House","deviceToken":"TOKEN_EXPO_DO_MEDICO"}`
	w := makeRequest(router, "POST", "/responders", bytes.NewBufferString(body), apiKeyHeader)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveResponder(t *testing.T) {
	_, _, mockResponders, router := newTestHandler(t)
	id := uuid.New()
	mockResponders.EXPECT().Remove(gomock.Any(), id).Return(nil)

	w := makeRequest(router, "DELETE", "/responders/"+id.String(), nil, apiKeyHeader)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestListResponders(t *testing.T) {
	_, _, mockResponders, router := newTestHandler(t)
	mockResponders.EXPECT().List(gomock.Any()).Return([]*models.ResponderDevice{{ID: uuid.New(), DeviceToken: "ExponentPushToken[a]"}}, nil)

	w := makeRequest(router, "GET", "/responders", nil, apiKeyHeader)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ExponentPushToken[a]")
}

func TestOperatorRoutes_OpenWithoutKeys(t *testing.T) {
	h, mockDispatch, _, _ := newTestHandler(t)
	h.cfg = &config.Config{}
	router := gin.New()
	h.RegisterRoutes(router)

	mockDispatch.EXPECT().RemoveAll(gomock.Any()).Return(int64(0), nil)

	w := makeRequest(router, "DELETE", "/removeAllRequests", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestEmergency_RateLimited(t *testing.T) {
	h, mockDispatch, _, _ := newTestHandler(t)
	limit, err := NewRateLimitMiddleware("1-M", memory.NewStore(), h.logger)
	require.NoError(t, err)
	router := gin.New()
	h.RegisterRoutes(router, limit)

	mockDispatch.EXPECT().
		Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.SubmitResult{Request: &models.EmergencyRequest{ID: uuid.New()}}, nil).
		Times(1)

	body := `{"emergencyType":"cardiac","location":{"latitude":10,"longitude":20}}`
	w := makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(body))
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(router, "POST", "/requestEmergency", bytes.NewBufferString(body))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Остальные маршруты лимитом не затронуты
	mockDispatch.EXPECT().ListHistory(gomock.Any()).Return(nil, nil)
	w = makeRequest(router, "GET", "/getRequests", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRateLimitMiddleware_InvalidRate(t *testing.T) {
	_, err := NewRateLimitMiddleware("lots", memory.NewStore(), logrus.New())
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
