package model

import (
	"strings"
	"time"
)

// Core domain types for the copper-to-fiber migration program.

type Region string

const (
	RegionVancouverIsland Region = "Vancouver Island"
	RegionLowerMainland   Region = "Lower Mainland"
	RegionInterior        Region = "Interior"
	RegionNorth           Region = "North"
)

var AllRegions = []Region{RegionVancouverIsland, RegionLowerMainland, RegionInterior, RegionNorth}

func (r Region) Valid() bool { return oneOf(r, AllRegions) }

type FiberStatus string

const (
	FiberReady      FiberStatus = "Fiber Ready"
	FiberPending    FiberStatus = "Pending Feasibility"
	FiberCopperOnly FiberStatus = "Copper Only"
)

var AllFiberStatuses = []FiberStatus{FiberReady, FiberPending, FiberCopperOnly}

func (s FiberStatus) Valid() bool { return oneOf(s, AllFiberStatuses) }

type CustomerCohort string

const (
	CohortHospitals  CustomerCohort = "Hospitals"
	CohortGovernment CustomerCohort = "Government"
	CohortEnterprise CustomerCohort = "Enterprise"
)

var AllCohorts = []CustomerCohort{CohortHospitals, CohortGovernment, CohortEnterprise}

func (c CustomerCohort) Valid() bool { return oneOf(c, AllCohorts) }

type WaveStatus string

const (
	WavePlanning   WaveStatus = "Planning"
	WaveInProgress WaveStatus = "In Progress"
	WaveCompleted  WaveStatus = "Completed"
	WaveOnHold     WaveStatus = "On Hold"
)

var AllWaveStatuses = []WaveStatus{WavePlanning, WaveInProgress, WaveCompleted, WaveOnHold}

func (s WaveStatus) Valid() bool { return oneOf(s, AllWaveStatuses) }

type AssetType string

const (
	AssetCopper AssetType = "copper"
	AssetFiber  AssetType = "fiber"
	AssetONT    AssetType = "ONT"
)

var AllAssetTypes = []AssetType{AssetCopper, AssetFiber, AssetONT}

func (t AssetType) Valid() bool { return oneOf(t, AllAssetTypes) }

type AssetStatus string

const (
	AssetActive    AssetStatus = "active"
	AssetPending   AssetStatus = "pending"
	AssetCompleted AssetStatus = "completed"
	AssetFailed    AssetStatus = "failed"
)

var AllAssetStatuses = []AssetStatus{AssetActive, AssetPending, AssetCompleted, AssetFailed}

func (s AssetStatus) Valid() bool { return oneOf(s, AllAssetStatuses) }

type WorkOrderStatus string

const (
	WorkOrderAssigned   WorkOrderStatus = "Assigned"
	WorkOrderInProgress WorkOrderStatus = "In Progress"
	WorkOrderCompleted  WorkOrderStatus = "Completed"
	WorkOrderFailed     WorkOrderStatus = "Failed"
)

var AllWorkOrderStatuses = []WorkOrderStatus{WorkOrderAssigned, WorkOrderInProgress, WorkOrderCompleted, WorkOrderFailed}

func (s WorkOrderStatus) Valid() bool { return oneOf(s, AllWorkOrderStatuses) }

type ConsentStatus string

const (
	ConsentGiven    ConsentStatus = "Consented"
	ConsentPending  ConsentStatus = "Pending"
	ConsentDeclined ConsentStatus = "Declined"
)

var AllConsentStatuses = []ConsentStatus{ConsentGiven, ConsentPending, ConsentDeclined}

func (s ConsentStatus) Valid() bool { return oneOf(s, AllConsentStatuses) }

func oneOf[T comparable](v T, all []T) bool {
	for _, a := range all {
		if a == v {
			return true
		}
	}
	return false
}

// ParseAssetType accepts the type case-insensitively ("ont" -> ONT).
func ParseAssetType(s string) (AssetType, bool) {
	for _, t := range AllAssetTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// ParseAssetStatus accepts the status case-insensitively.
func ParseAssetStatus(s string) (AssetStatus, bool) {
	for _, st := range AllAssetStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Entities. JSON names follow the backend column names.

type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type Location struct {
	ID          string      `json:"id" validate:"required"`
	Address     string      `json:"address" validate:"required"`
	Region      Region      `json:"region" validate:"enum"`
	Coordinates Coordinates `json:"coordinates"`
	WaveID      string      `json:"wave_id,omitempty"`
	FiberStatus FiberStatus `json:"fiber_status" validate:"enum"`
}

type Wave struct {
	ID                 string         `json:"id" validate:"required"`
	Name               string         `json:"name" validate:"required"`
	StartDate          string         `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string         `json:"end_date" validate:"required,datetime=2006-01-02"`
	Region             Region         `json:"region" validate:"enum"`
	CustomerCohort     CustomerCohort `json:"customer_cohort" validate:"enum"`
	ProgressStatus     WaveStatus     `json:"progress_status" validate:"enum"`
	ProgressPercentage int            `json:"progress_percentage" validate:"gte=0,lte=100"`
}

type Asset struct {
	ID               string      `json:"id" validate:"required"`
	Type             AssetType   `json:"type" validate:"enum"`
	LocationID       string      `json:"location_id"`
	Status           AssetStatus `json:"status" validate:"enum"`
	InstallationDate string      `json:"installation_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TechnicianID     string      `json:"technician_id,omitempty"`
}

type WorkOrder struct {
	ID           string          `json:"id" validate:"required"`
	LocationID   string          `json:"location_id"`
	TechnicianID string          `json:"technician_id"`
	Status       WorkOrderStatus `json:"status" validate:"enum"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
}

type Technician struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone"`
	AssignedJobs int    `json:"assigned_jobs" validate:"gte=0"`
}

type Customer struct {
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name" validate:"required"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	ConsentStatus ConsentStatus `json:"consent_status" validate:"enum"`
}

type ConsentLog struct {
	ID         string        `json:"id" validate:"required"`
	CustomerID string        `json:"customer_id" validate:"required"`
	AgentName  string        `json:"agent_name" validate:"required"`
	Status     ConsentStatus `json:"status" validate:"enum"`
	Timestamp  time.Time     `json:"timestamp"`
	Notes      string        `json:"notes,omitempty"`
}

// Inputs for create/update operations.

type LocationInput struct {
	Address     string      `json:"address" validate:"required"`
	Region      Region      `json:"region" validate:"enum"`
	Coordinates Coordinates `json:"coordinates"`
	WaveID      string      `json:"wave_id,omitempty"`
	FiberStatus FiberStatus `json:"fiber_status,omitempty" validate:"omitempty,enum"`
}

type WaveInput struct {
	Name           string         `json:"name" validate:"required"`
	StartDate      string         `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string         `json:"end_date" validate:"required,datetime=2006-01-02"`
	Region         Region         `json:"region" validate:"enum"`
	CustomerCohort CustomerCohort `json:"customer_cohort" validate:"enum"`
	ProgressStatus WaveStatus     `json:"progress_status,omitempty" validate:"omitempty,enum"`
}

type AssetInput struct {
	Type             AssetType   `json:"type" validate:"enum"`
	LocationID       string      `json:"location_id"`
	Status           AssetStatus `json:"status" validate:"enum"`
	InstallationDate string      `json:"installation_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TechnicianID     string      `json:"technician_id,omitempty"`
}

// AssetPatch carries optional asset updates; nil fields are left unchanged.
type AssetPatch struct {
	Type             *AssetType   `json:"type,omitempty" validate:"omitempty,enum"`
	LocationID       *string      `json:"location_id,omitempty"`
	Status           *AssetStatus `json:"status,omitempty" validate:"omitempty,enum"`
	InstallationDate *string      `json:"installation_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TechnicianID     *string      `json:"technician_id,omitempty"`
}

type WorkOrderInput struct {
	LocationID   string          `json:"location_id" validate:"required"`
	TechnicianID string          `json:"technician_id"`
	Status       WorkOrderStatus `json:"status,omitempty" validate:"omitempty,enum"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
}

type WorkOrderStatusUpdate struct {
	Status    WorkOrderStatus `json:"status" validate:"enum"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
}

type TechnicianInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

type CustomerInput struct {
	Name          string        `json:"name" validate:"required"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	ConsentStatus ConsentStatus `json:"consent_status,omitempty" validate:"omitempty,enum"`
}

type ConsentInput struct {
	CustomerID string        `json:"customer_id" validate:"required"`
	AgentName  string        `json:"agent_name" validate:"required"`
	Status     ConsentStatus `json:"status" validate:"enum"`
	Notes      string        `json:"notes,omitempty"`
}

// Snapshot is a wholesale fetch of the collections the derived computations read.
type Snapshot struct {
	Locations  []Location  `json:"locations"`
	Waves      []Wave      `json:"waves"`
	Assets     []Asset     `json:"assets"`
	WorkOrders []WorkOrder `json:"work_orders"`
}
