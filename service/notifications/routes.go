package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/razumed/clinic-server/cmd/models"
	"gorm.io/gorm"
)

// NotificationHandler handles notification operations
type NotificationHandler struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

// RegisterRoutes registers all notification routes
func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
	router.HandleFunc("/notifications", h.SendNotification).Methods("POST")
	router.HandleFunc("/notifications/broadcast", h.BroadcastNotification).Methods("POST")
	router.HandleFunc("/patients/{patientId:[0-9]+}/devices", h.GetPatientDevices).Methods("GET")
	router.HandleFunc("/patients/{patientId:[0-9]+}/notifications", h.SendPatientNotification).Methods("POST")
	router.HandleFunc("/patients/{patientId:[0-9]+}/history", h.GetPatientNotificationHistory).Methods("GET")
	router.HandleFunc("/devices/{id}", h.DeleteDevice).Methods("DELETE")
}

// RegisterDevice registers a new device for push notifications
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if device.PatientID == 0 || device.Token == "" {
		http.Error(w, "PatientID and token are required", http.StatusBadRequest)
		return
	}

	// Validate the Expo push token format
	if _, err := expo.NewExponentPushToken(device.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	// Check if this device already exists
	var existingDevice models.Device
	result := h.db.Where("token = ? AND patient_id = ?", device.Token, device.PatientID).First(&existingDevice)

	if result.Error == nil {
		// Device already exists, update it
		existingDevice.UpdatedAt = time.Now()
		existingDevice.DeviceType = device.DeviceType
		existingDevice.DeviceName = device.DeviceName
		if err := h.db.Save(&existingDevice).Error; err != nil {
			http.Error(w, "Error updating device", http.StatusInternalServerError)
			return
		}
		device = existingDevice
	} else {
		if err := h.db.Create(&device).Error; err != nil {
			http.Error(w, "Error creating device", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

// GetPatientDevices gets all devices for a specific patient
func (h *NotificationHandler) GetPatientDevices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	patientID, err := strconv.ParseUint(vars["patientId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}

	var devices []models.Device
	if err := h.db.Where("patient_id = ?", patientID).Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

// SendNotification sends a push notification to a specific device
func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req models.NotificationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Token == "" || req.Title == "" || req.Body == "" {
		http.Error(w, "Token, title and body are required", http.StatusBadRequest)
		return
	}

	// Find device to get the patient ID
	var device models.Device
	if err := h.db.Where("token = ?", req.Token).First(&device).Error; err != nil {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	success, err := h.sendExpoNotificationSDK([]string{req.Token}, req.Title, req.Body, req.Data)

	status := "sent"
	if !success || err != nil {
		status = "failed"
	}

	dataJSON, _ := json.Marshal(req.Data)

	history := models.NotificationHistory{
		PatientID: device.PatientID,
		Title:     req.Title,
		Body:      req.Body,
		Data:      string(dataJSON),
		Status:    status,
		SentAt:    time.Now(),
	}

	if dbErr := h.db.Create(&history).Error; dbErr != nil {
		// Log this error but don't fail the request
		log.Printf("Error creating notification history: %v", dbErr)
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"message": "Notification sent",
	})
}

// SendPatientNotification sends a notification to all devices of a patient
func (h *NotificationHandler) SendPatientNotification(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	patientID, err := strconv.ParseUint(vars["patientId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}

	var notificationData struct {
		Title string                 `json:"title"`
		Body  string                 `json:"body"`
		Data  map[string]interface{} `json:"data,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&notificationData); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var devices []models.Device
	result := h.db.Where("patient_id = ?", patientID).Find(&devices)

	if result.Error != nil {
		http.Error(w, "Error retrieving patient devices", http.StatusInternalServerError)
		return
	}

	if len(devices) == 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "No devices registered for this patient",
		})
		return
	}

	var tokens []string
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}

	success, err := h.sendExpoNotificationSDK(tokens, notificationData.Title, notificationData.Body, notificationData.Data)

	status := "sent"
	if !success || err != nil {
		status = "failed"
	}

	dataJSON, _ := json.Marshal(notificationData.Data)

	history := models.NotificationHistory{
		PatientID: uint(patientID),
		Title:     notificationData.Title,
		Body:      notificationData.Body,
		Data:      string(dataJSON),
		Status:    status,
		SentAt:    time.Now(),
	}

	if dbErr := h.db.Create(&history).Error; dbErr != nil {
		// Log this error but don't fail the request
		log.Printf("Error creating notification history: %v", dbErr)
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"message": fmt.Sprintf("Notification sent to %d devices", len(tokens)),
	})
}

// BroadcastNotification sends a notification to multiple patients or all patients
func (h *NotificationHandler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	var req models.BroadcastRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Body == "" {
		http.Error(w, "Title and body are required", http.StatusBadRequest)
		return
	}

	var devices []models.Device
	query := h.db

	if len(req.PatientIDs) > 0 {
		query = query.Where("patient_id IN ?", req.PatientIDs)
	}

	if err := query.Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	if len(devices) == 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "No devices found for notification",
		})
		return
	}

	var tokens []string
	patientSet := make(map[uint]bool)
	for _, device := range devices {
		tokens = append(tokens, device.Token)
		patientSet[device.PatientID] = true
	}

	// The SDK handles batching internally
	success, err := h.sendExpoNotificationSDK(tokens, req.Title, req.Body, req.Data)

	status := "sent"
	if !success || err != nil {
		status = "failed"
	}

	dataJSON, _ := json.Marshal(req.Data)

	for patientID := range patientSet {
		history := models.NotificationHistory{
			PatientID: patientID,
			Title:     req.Title,
			Body:      req.Body,
			Data:      string(dataJSON),
			Status:    status,
			SentAt:    time.Now(),
		}

		if err := h.db.Create(&history).Error; err != nil {
			// Log this error but don't fail the request
			log.Printf("Error creating notification history for patient %d: %v\n", patientID, err)
		}
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"message": fmt.Sprintf("Broadcast sent to %d devices", len(tokens)),
	})
}

// GetPatientNotificationHistory gets notification history for a specific patient
func (h *NotificationHandler) GetPatientNotificationHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	patientID, err := strconv.ParseUint(vars["patientId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}

	limit := 20
	page := 1

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsedLimit, err := strconv.Atoi(limitParam); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if parsedPage, err := strconv.Atoi(pageParam); err == nil && parsedPage > 0 {
			page = parsedPage
		}
	}

	offset := (page - 1) * limit

	var history []models.NotificationHistory
	var count int64

	if err := h.db.Model(&models.NotificationHistory{}).Where("patient_id = ?", patientID).Count(&count).Error; err != nil {
		http.Error(w, "Error counting notifications", http.StatusInternalServerError)
		return
	}

	if err := h.db.Where("patient_id = ?", patientID).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&history).Error; err != nil {
		http.Error(w, "Error retrieving notification history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total":   count,
		"page":    page,
		"limit":   limit,
		"history": history,
	})
}

// DeleteDevice deletes a device token
func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid device ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.Device{}, deviceID)
	if result.Error != nil {
		http.Error(w, "Error deleting device", http.StatusInternalServerError)
		return
	}

	if result.RowsAffected == 0 {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Device deleted successfully",
	})
}

// SendToPatient pushes one message to every device the patient has
// registered, recording the outcome. Used by the reminder loop.
func (h *NotificationHandler) SendToPatient(patientID uint, title, body string, data map[string]interface{}) error {
	var devices []models.Device
	if err := h.db.Where("patient_id = ?", patientID).Find(&devices).Error; err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	var tokens []string
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}

	success, err := h.sendExpoNotificationSDK(tokens, title, body, data)

	status := "sent"
	if !success || err != nil {
		status = "failed"
	}
	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		PatientID: patientID,
		Title:     title,
		Body:      body,
		Data:      string(dataJSON),
		Status:    status,
		SentAt:    time.Now(),
	}
	if dbErr := h.db.Create(&history).Error; dbErr != nil {
		log.Printf("Error creating notification history: %v", dbErr)
	}

	return err
}

// sendExpoNotificationSDK sends push notifications using the Expo SDK
func (h *NotificationHandler) sendExpoNotificationSDK(tokenStrings []string, title, body string, data map[string]interface{}) (bool, error) {
	var validTokens []expo.ExponentPushToken
	var invalidTokens []string

	// Validate and convert tokens
	for _, tokenString := range tokenStrings {
		pushToken, err := expo.NewExponentPushToken(tokenString)
		if err != nil {
			log.Printf("Invalid push token format %s: %v", tokenString, err)
			invalidTokens = append(invalidTokens, tokenString)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}

	if len(validTokens) == 0 {
		return false, fmt.Errorf("no valid push tokens found")
	}

	// Convert data to map[string]string
	var stringData map[string]string
	if data != nil {
		stringData = make(map[string]string)
		for key, value := range data {
			stringData[key] = fmt.Sprintf("%v", value)
		}
	}

	pushMessage := &expo.PushMessage{
		To:       validTokens,
		Body:     body,
		Title:    title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	}

	response, err := h.expoClient.Publish(pushMessage)
	if err != nil {
		return false, fmt.Errorf("failed to publish notification: %v", err)
	}

	if validationErr := response.ValidateResponse(); validationErr != nil {
		log.Printf("Push notification validation error: %v", validationErr)

		h.cleanupInvalidTokens(invalidTokens)

		return false, fmt.Errorf("notification validation failed: %v", validationErr)
	}

	if len(invalidTokens) > 0 {
		h.cleanupInvalidTokens(invalidTokens)
	}

	return true, nil
}

// Helper function to remove invalid tokens from database
func (h *NotificationHandler) cleanupInvalidTokens(tokens []string) {
	for _, token := range tokens {
		if err := h.db.Where("token = ?", token).Delete(&models.Device{}).Error; err != nil {
			log.Printf("Error cleaning up invalid token %s: %v", token, err)
		} else {
			log.Printf("Cleaned up invalid token: %s", token)
		}
	}
}
