package stage

// Dimension labels shared by every variable in the model state.
const (
	DimFGroup = "functional_group"
	DimTime   = "time"
	DimY      = "latitude"
	DimX      = "longitude"
	DimZ      = "layer"
	DimCohort = "cohort"
)

// Forcing and derived variable names.
const (
	VarTemperature       = "temperature"
	VarPrimaryProduction = "primary_production"
	VarGlobalMask        = "mask"
	VarMaskFGroup        = "mask_fgroup"
	VarDayLength         = "day_length"
	VarAvgTemperature    = "average_temperature"
	VarPPByFGroup        = "primary_production_by_fgroup"
	VarMinTemperature    = "min_temperature"
	VarMaskTemperature   = "mask_temperature"
	VarMortality         = "mortality_field"
	VarRecruited         = "recruited"
	VarPreproduction     = "preproduction"
	VarBiomass           = "biomass"
	VarCellArea          = "cell_area"
)

// Parameter variables broadcast into the state by forcing assembly.
const (
	ParamEnergyTransfert    = "energy_transfert"
	ParamLambda0            = "lambda_temperature_0"
	ParamGammaLambda        = "gamma_lambda_temperature"
	ParamTr0                = "tr_0"
	ParamGammaTr            = "gamma_tr"
	ParamDayLayer           = "day_layer"
	ParamNightLayer         = "night_layer"
	ParamTimestepsNumber    = "timesteps_number"
	ParamMeanTimestep       = "mean_timestep"
	ParamTimestep           = "timestep"
	ParamResolutionLat      = "resolution_latitude"
	ParamResolutionLon      = "resolution_longitude"
	ParamInitialProduction  = "initial_condition_production"
	ParamInitialBiomass     = "initial_condition_biomass"
)
