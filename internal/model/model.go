package model

import (
	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
)

// Aliases exposing the common types to the services.

type (
	SensorReading          = messages.SensorReading
	Metric                 = messages.Metric
	AlertEvent             = messages.AlertEvent
	IrrigationRequest      = messages.IrrigationRequest
	IrrigationCommand      = messages.IrrigationCommand
	IrrigationConfirmation = messages.IrrigationConfirmation
	DeviceState            = entities.DeviceState
	ThresholdPolicy        = entities.ThresholdPolicy
	PolicyTable            = entities.PolicyTable
	AlertKind              = entities.AlertKind
	Report                 = entities.Report
	ReportEntry            = entities.ReportEntry
)

const (
	TimeLayout  = messages.TimeLayout
	ErrSentinel = messages.ErrSentinel
)
