package models

import "time"

const AppointmentScheduled = "agendado"

// Appointment represents a row of the agenda table
type Appointment struct {
	ID         int64     `json:"id_agenda"`
	ProviderID string    `json:"id_prestador"`
	ClientID   string    `json:"id_cliente"`
	Date       time.Time `json:"data_agenda"`
	Start      string    `json:"horario_inicio"`
	End        string    `json:"horario_fim"`
	Address    string    `json:"endereco"`
	Status     string    `json:"status"`
}

// AppointmentRequest is the payload for booking a slot
type AppointmentRequest struct {
	ClientID string `json:"id_cliente" validate:"required"`
	Date     string `json:"data_agenda" validate:"required,datetime=2006-01-02"`
	Start    string `json:"horario_inicio" validate:"required"`
	End      string `json:"horario_fim" validate:"required"`
	Address  string `json:"endereco"`
}
