package planner

import (
	"fmt"
	"math"
)

// Config is the fully resolved planning configuration consumed by every
// pass. It is immutable for the duration of a run; no file or network access
// happens inside the planner.
type Config struct {
	Timezone     string             `json:"timezone"`
	SlotMinutes  int                `json:"slot_minutes"`
	HorizonHours int                `json:"horizon_hours"`
	Battery      BatteryConfig      `json:"battery"`
	System       SystemConfig       `json:"system"`
	Thresholds   ThresholdConfig    `json:"decision_thresholds"`
	Charging     ChargingConfig     `json:"charging_strategy"`
	Strategic    StrategicConfig    `json:"strategic_charging"`
	WaterHeating WaterHeatingConfig `json:"water_heating"`
	Export       ExportConfig       `json:"export"`
	SIndex       SIndexConfig       `json:"s_index"`
	Forecast     ForecastConfig     `json:"forecasting"`
	Smoothing    SmoothingConfig    `json:"smoothing"`
}

// BatteryConfig holds battery bounds, power limits and economics.
type BatteryConfig struct {
	CapacityKWh                float64 `json:"capacity_kwh"`
	MinSoCPercent              float64 `json:"min_soc_percent"`
	MaxSoCPercent              float64 `json:"max_soc_percent"`
	MaxChargePowerKW           float64 `json:"max_charge_power_kw"`
	MaxDischargePowerKW        float64 `json:"max_discharge_power_kw"`
	RoundTripEfficiencyPercent float64 `json:"roundtrip_efficiency_percent"`
	CycleCostPerKWh            float64 `json:"battery_cycle_cost_kwh"`
}

// MinSoCKWh returns the SoC floor in kWh.
func (b BatteryConfig) MinSoCKWh() float64 { return b.MinSoCPercent / 100.0 * b.CapacityKWh }

// MaxSoCKWh returns the SoC ceiling in kWh.
func (b BatteryConfig) MaxSoCKWh() float64 { return b.MaxSoCPercent / 100.0 * b.CapacityKWh }

// OneWayEfficiency splits the round-trip efficiency evenly between charge
// and discharge.
func (b BatteryConfig) OneWayEfficiency() float64 {
	rt := b.RoundTripEfficiencyPercent / 100.0
	if rt <= 0 {
		return 0
	}
	if rt > 1 {
		rt = 1
	}
	return math.Sqrt(rt)
}

// SystemConfig holds inverter and grid connection limits.
type SystemConfig struct {
	InverterMaxPowerKW float64 `json:"inverter_max_power_kw"`
	GridMaxPowerKW     float64 `json:"grid_max_power_kw"`
}

// ThresholdConfig holds the decision margins added on top of the battery's
// weighted acquisition cost.
type ThresholdConfig struct {
	BatteryUseMargin   float64 `json:"battery_use_margin"`
	BatteryWaterMargin float64 `json:"battery_water_margin"`
}

// ChargingConfig holds cheap-window detection and distribution parameters.
type ChargingConfig struct {
	CheapPercentile                  float64 `json:"charge_threshold_percentile"`
	PriceTolerance                   float64 `json:"cheap_price_tolerance"`
	PriceSmoothing                   float64 `json:"price_smoothing"`
	BlockConsolidationTolerance      float64 `json:"block_consolidation_tolerance"`
	ConsolidationMaxGapSlots         int     `json:"consolidation_max_gap_slots"`
	ResponsibilityOnlyAboveThreshold bool    `json:"responsibility_only_above_threshold"`
}

// StrategicConfig holds the strategic-charging floor price and target.
type StrategicConfig struct {
	Enabled          bool    `json:"enabled"`
	PriceThreshold   float64 `json:"price_threshold"`
	TargetSoCPercent float64 `json:"target_soc_percent"`
}

// WaterHeatingConfig holds comfort minimums and deferral limits.
type WaterHeatingConfig struct {
	Enabled         bool    `json:"enabled"`
	PowerKW         float64 `json:"power_kw"`
	MinHoursPerDay  float64 `json:"min_hours_per_day"`
	MinKWhPerDay    float64 `json:"min_kwh_per_day"`
	MaxBlocksPerDay int     `json:"max_blocks_per_day"`
	DeferUpToHours  float64 `json:"defer_up_to_hours"`
	PlanDaysAhead   int     `json:"plan_days_ahead"`
}

// ExportConfig holds grid export controls.
type ExportConfig struct {
	Enabled             bool    `json:"enabled"`
	FeePerKWh           float64 `json:"fee_per_kwh"`
	ProfitMargin        float64 `json:"profit_margin"`
	PercentileThreshold float64 `json:"percentile_threshold"`
	PeakOnly            bool    `json:"peak_only"`
}

// SIndexConfig holds the dynamic safety factor parameters. The factor hedges
// gap-energy estimates against forecast error.
type SIndexConfig struct {
	BaseFactor      float64 `json:"base_factor"`
	MaxFactor       float64 `json:"max_factor"`
	PVDeficitWeight float64 `json:"pv_deficit_weight"`
	TempWeight      float64 `json:"temp_weight"`
	TempBaselineC   float64 `json:"temp_baseline_c"`
	TempColdC       float64 `json:"temp_cold_c"`
	HorizonDays     int     `json:"horizon_days"`
}

// ForecastConfig holds the static safety margins applied at frame build time.
type ForecastConfig struct {
	PVConfidencePercent     float64 `json:"pv_confidence_percent"`
	LoadSafetyMarginPercent float64 `json:"load_safety_margin_percent"`
}

// SmoothingConfig holds hysteresis limits that suppress single-slot action
// toggles in the finalized schedule.
type SmoothingConfig struct {
	MinOnSlotsCharge     int `json:"min_on_slots_charge"`
	MinOffSlotsCharge    int `json:"min_off_slots_charge"`
	MinOnSlotsDischarge  int `json:"min_on_slots_discharge"`
	MinOffSlotsDischarge int `json:"min_off_slots_discharge"`
	MinOnSlotsExport     int `json:"min_on_slots_export"`
}

// SetDefaults applies sane defaults for unset values.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/Stockholm"
	}
	if c.SlotMinutes == 0 {
		c.SlotMinutes = 15
	}
	if c.HorizonHours == 0 {
		c.HorizonHours = 24
	}
	if c.Battery.CapacityKWh == 0 {
		c.Battery.CapacityKWh = 10.0
	}
	if c.Battery.MinSoCPercent == 0 {
		c.Battery.MinSoCPercent = 15
	}
	if c.Battery.MaxSoCPercent == 0 {
		c.Battery.MaxSoCPercent = 95
	}
	if c.Battery.MaxChargePowerKW == 0 {
		c.Battery.MaxChargePowerKW = 5.0
	}
	if c.Battery.MaxDischargePowerKW == 0 {
		c.Battery.MaxDischargePowerKW = 5.0
	}
	if c.Battery.RoundTripEfficiencyPercent == 0 {
		c.Battery.RoundTripEfficiencyPercent = 95.0
	}
	if c.System.InverterMaxPowerKW == 0 {
		c.System.InverterMaxPowerKW = 10.0
	}
	if c.System.GridMaxPowerKW == 0 {
		c.System.GridMaxPowerKW = 25.0
	}
	if c.Thresholds.BatteryUseMargin == 0 {
		c.Thresholds.BatteryUseMargin = 0.10
	}
	if c.Thresholds.BatteryWaterMargin == 0 {
		c.Thresholds.BatteryWaterMargin = 0.20
	}
	if c.Charging.CheapPercentile == 0 {
		c.Charging.CheapPercentile = 15
	}
	if c.Charging.PriceTolerance == 0 {
		c.Charging.PriceTolerance = 0.10
	}
	if c.Charging.PriceSmoothing == 0 {
		c.Charging.PriceSmoothing = 0.05
	}
	if c.Strategic.PriceThreshold == 0 {
		c.Strategic.PriceThreshold = 0.90
	}
	if c.Strategic.TargetSoCPercent == 0 {
		c.Strategic.TargetSoCPercent = c.Battery.MaxSoCPercent
	}
	if c.WaterHeating.PowerKW == 0 {
		c.WaterHeating.PowerKW = 3.0
	}
	if c.WaterHeating.MinHoursPerDay == 0 {
		c.WaterHeating.MinHoursPerDay = 2.0
	}
	if c.WaterHeating.MinKWhPerDay == 0 {
		c.WaterHeating.MinKWhPerDay = c.WaterHeating.PowerKW * c.WaterHeating.MinHoursPerDay
	}
	if c.WaterHeating.MaxBlocksPerDay == 0 {
		c.WaterHeating.MaxBlocksPerDay = 2
	}
	if c.WaterHeating.PlanDaysAhead == 0 {
		c.WaterHeating.PlanDaysAhead = 1
	}
	if c.Export.FeePerKWh == 0 {
		c.Export.FeePerKWh = 0.0
	}
	if c.Export.ProfitMargin == 0 {
		c.Export.ProfitMargin = 0.05
	}
	if c.Export.PercentileThreshold == 0 {
		c.Export.PercentileThreshold = 20
	}
	if c.SIndex.BaseFactor == 0 {
		c.SIndex.BaseFactor = 1.05
	}
	if c.SIndex.MaxFactor == 0 {
		c.SIndex.MaxFactor = 1.5
	}
	if c.SIndex.TempBaselineC == 0 {
		c.SIndex.TempBaselineC = 20.0
	}
	if c.SIndex.TempColdC == 0 {
		c.SIndex.TempColdC = -15.0
	}
	if c.SIndex.HorizonDays == 0 {
		c.SIndex.HorizonDays = 4
	}
	if c.Forecast.PVConfidencePercent == 0 {
		c.Forecast.PVConfidencePercent = 90.0
	}
	if c.Forecast.LoadSafetyMarginPercent == 0 {
		c.Forecast.LoadSafetyMarginPercent = 10.0
	}
	if c.Smoothing.MinOnSlotsCharge == 0 {
		c.Smoothing.MinOnSlotsCharge = 2
	}
	if c.Smoothing.MinOffSlotsCharge == 0 {
		c.Smoothing.MinOffSlotsCharge = 1
	}
	if c.Smoothing.MinOnSlotsDischarge == 0 {
		c.Smoothing.MinOnSlotsDischarge = 2
	}
	if c.Smoothing.MinOffSlotsDischarge == 0 {
		c.Smoothing.MinOffSlotsDischarge = 1
	}
	if c.Smoothing.MinOnSlotsExport == 0 {
		c.Smoothing.MinOnSlotsExport = 2
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive")
	}
	if c.HorizonHours <= 0 {
		return fmt.Errorf("horizon_hours must be positive")
	}
	if c.Battery.CapacityKWh <= 0 {
		return fmt.Errorf("battery capacity_kwh must be positive")
	}
	if c.Battery.MinSoCPercent < 0 || c.Battery.MaxSoCPercent > 100 ||
		c.Battery.MinSoCPercent >= c.Battery.MaxSoCPercent {
		return fmt.Errorf("battery SoC bounds must satisfy 0 <= min < max <= 100")
	}
	if c.Battery.RoundTripEfficiencyPercent <= 0 || c.Battery.RoundTripEfficiencyPercent > 100 {
		return fmt.Errorf("roundtrip_efficiency_percent must be in (0, 100]")
	}
	if c.Charging.CheapPercentile <= 0 || c.Charging.CheapPercentile >= 100 {
		return fmt.Errorf("charge_threshold_percentile must be in (0, 100)")
	}
	if c.WaterHeating.PowerKW < 0 {
		return fmt.Errorf("water_heating power_kw must not be negative")
	}
	if c.Export.PercentileThreshold < 0 || c.Export.PercentileThreshold > 100 {
		return fmt.Errorf("export percentile_threshold must be in [0, 100]")
	}
	if c.SIndex.BaseFactor < 1.0 {
		return fmt.Errorf("s_index base_factor must be >= 1.0")
	}
	if c.SIndex.MaxFactor < c.SIndex.BaseFactor {
		return fmt.Errorf("s_index max_factor must be >= base_factor")
	}
	if _, err := loadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}
