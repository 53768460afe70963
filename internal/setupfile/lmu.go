package setupfile

import (
	"encoding/json"
	"strconv"

	"github.com/sweeney/drivestats/internal/logic"
)

type field struct {
	key    string // output key
	source string // payload key
}

type section struct {
	name   string
	fields []field
}

// lmuSections maps LMU .svm sections and keys to setup payload keys.
// Tyre compound per wheel is left out: the sim value can desync.
var lmuSections = []section{
	{"GENERAL", []field{
		{"Symmetric", "symmetric"},
		{"CGHeightSetting", "VM_WEIGHT_VERTICAL"},
		{"CGRightSetting", "VM_WEIGHT_LATERAL"},
		{"CGRearSetting", "VM_WEIGHT_DISTRIB"},
		{"WedgeSetting", "VM_WEIGHT_WEDGE"},
		{"FrontTireCompoundSetting", "VM_FRONT_TIRE_COMPOUND"},
		{"RearTireCompoundSetting", "VM_REAR_TIRE_COMPOUND"},
		{"FuelSetting", "VM_FUEL_LEVEL"},
		{"FuelCapacitySetting", "VM_FUEL_CAPACITY"},
		{"VirtualEnergySetting", "VM_VIRTUAL_ENERGY"},
		{"NumPitstopsSetting", "VM_NUM_PITSTOPS"},
		{"Pitstop1Setting", "VM_PITSTOP_1"},
		{"Pitstop2Setting", "VM_PITSTOP_2"},
		{"Pitstop3Setting", "VM_PITSTOP_3"},
	}},
	{"LEFTFENDER", []field{
		{"FenderFlareSetting", "VM_LEFT_FENDER_FLARE"},
	}},
	{"RIGHTFENDER", []field{
		{"FenderFlareSetting", "VM_RIGHT_FENDER_FLARE"},
	}},
	{"FRONTWING", []field{
		{"FWSetting", "VM_FRONT_WING"},
	}},
	{"REARWING", []field{
		{"RWSetting", "VM_REAR_WING"},
	}},
	{"BODYAERO", []field{
		{"WaterRadiatorSetting", "VM_WATER_RADIATOR"},
		{"OilRadiatorSetting", "VM_OIL_RADIATOR"},
		{"BrakeDuctSetting", "VM_BRAKE_DUCTS"},
		{"BrakeDuctRearSetting", "VM_BRAKE_DUCTS_REAR"},
	}},
	{"SUSPENSION", []field{
		{"FrontWheelTrackSetting", "VM_FRONT_WHEEL_TRACK"},
		{"RearWheelTrackSetting", "VM_REAR_WHEEL_TRACK"},
		{"FrontAntiSwaySetting", "VM_FRONT_ANTISWAY"},
		{"RearAntiSwaySetting", "VM_REAR_ANTISWAY"},
		{"FrontToeInSetting", "VM_FRONT_TOEIN"},
		{"FrontToeOffsetSetting", "VM_FRONT_TOEOFFSET"},
		{"RearToeInSetting", "VM_REAR_TOEIN"},
		{"RearToeOffsetSetting", "VM_REAR_TOEOFFSET"},
		{"LeftCasterSetting", "VM_LEFT_CASTER"},
		{"RightCasterSetting", "VM_RIGHT_CASTER"},
		{"LeftTrackBarSetting", "VM_LEFT_TRACK_BAR"},
		{"RightTrackBarSetting", "VM_RIGHT_TRACK_BAR"},
		{"Front3rdPackerSetting", "VM_FRONT_3RD_PACKERS"},
		{"Front3rdSpringSetting", "VM_FRONT_3RD_SPRING"},
		{"Front3rdTenderSpringSetting", "VM_FRONT_3RD_TENDERSPRING"},
		{"Front3rdTenderTravelSetting", "VM_FRONT_3RD_TENDERSPRINGTRAVEL"},
		{"Front3rdSlowBumpSetting", "VM_FRONT_3RD_SLOWBUMP"},
		{"Front3rdFastBumpSetting", "VM_FRONT_3RD_FASTBUMP"},
		{"Front3rdSlowReboundSetting", "VM_FRONT_3RD_SLOWREBOUND"},
		{"Front3rdFastReboundSetting", "VM_FRONT_3RD_FASTREBOUND"},
		{"Rear3rdPackerSetting", "VM_REAR_3RD_PACKERS"},
		{"Rear3rdSpringSetting", "VM_REAR_3RD_SPRING"},
		{"Rear3rdTenderSpringSetting", "VM_REAR_3RD_TENDERSPRING"},
		{"Rear3rdTenderTravelSetting", "VM_REAR_3RD_TENDERSPRINGTRAVEL"},
		{"Rear3rdSlowBumpSetting", "VM_REAR_3RD_SLOWBUMP"},
		{"Rear3rdFastBumpSetting", "VM_REAR_3RD_FASTBUMP"},
		{"Rear3rdSlowReboundSetting", "VM_REAR_3RD_SLOWREBOUND"},
		{"Rear3rdFastReboundSetting", "VM_REAR_3RD_FASTREBOUND"},
		{"ChassisAdj00Setting", "VM_CHASSIS_ADJ_00"},
		{"ChassisAdj01Setting", "VM_CHASSIS_ADJ_01"},
		{"ChassisAdj02Setting", "VM_CHASSIS_ADJ_02"},
		{"ChassisAdj03Setting", "VM_CHASSIS_ADJ_03"},
		{"ChassisAdj04Setting", "VM_CHASSIS_ADJ_04"},
		{"ChassisAdj05Setting", "VM_CHASSIS_ADJ_05"},
		{"ChassisAdj06Setting", "VM_CHASSIS_ADJ_06"},
		{"ChassisAdj07Setting", "VM_CHASSIS_ADJ_07"},
		{"ChassisAdj08Setting", "VM_CHASSIS_ADJ_08"},
		{"ChassisAdj09Setting", "VM_CHASSIS_ADJ_09"},
		{"ChassisAdj10Setting", "VM_CHASSIS_ADJ_10"},
		{"ChassisAdj11Setting", "VM_CHASSIS_ADJ_11"},
	}},
	{"CONTROLS", []field{
		{"SteerLockSetting", "VM_STEER_LOCK"},
		{"RearBrakeSetting", "VM_BRAKE_BALANCE"},
		{"BrakeMigrationSetting", "VM_BRAKE_MIGRATION"},
		{"BrakePressureSetting", "VM_BRAKE_PRESSURE"},
		{"HandfrontbrakePressSetting", "VM_HANDFRONTBRAKE_PRESSURE"},
		{"HandbrakePressSetting", "VM_HANDBRAKE_PRESSURE"},
		{"TCSetting", "VM_TRACTION_CONTROL"},
		{"ABSSetting", "VM_ANTILOCK_BRAKES"},
		{"TractionControlMapSetting", "VM_TRACTIONCONTROLMAP"},
		{"TCPowerCutMapSetting", "VM_TRACTIONCONTROLPOWERCUTMAP"},
		{"TCSlipAngleMapSetting", "VM_TRACTIONCONTROLSLIPANGLEMAP"},
		{"AntilockBrakeSystemMapSetting", "VM_ANTILOCKBRAKESYSTEMMAP"},
	}},
	{"ENGINE", []field{
		{"RevLimitSetting", "VM_REV_LIMITER"},
		{"EngineBoostSetting", "VM_ENGINE_BOOST"},
		{"RegenerationMapSetting", "VM_REGEN_LEVEL"},
		{"ElectricMotorMapSetting", "VM_ELECTRIC_MOTOR_MAP"},
		{"EngineMixtureSetting", "VM_ENGINE_MIXTURE"},
		{"EngineBrakingMapSetting", "VM_ENGINE_BRAKEMAP"},
	}},
	{"DRIVELINE", []field{
		{"FinalDriveSetting", "VM_GEAR_FINAL"},
		{"ReverseSetting", "VM_GEAR_REVERSE"},
		{"Gear1Setting", "VM_GEAR_1"},
		{"Gear2Setting", "VM_GEAR_2"},
		{"Gear3Setting", "VM_GEAR_3"},
		{"Gear4Setting", "VM_GEAR_4"},
		{"Gear5Setting", "VM_GEAR_5"},
		{"Gear6Setting", "VM_GEAR_6"},
		{"Gear7Setting", "VM_GEAR_7"},
		{"Gear8Setting", "VM_GEAR_8"},
		{"Gear9Setting", "VM_GEAR_9"},
		{"RatioSetSetting", "VM_RATIO_SET"},
		{"DiffPumpSetting", "VM_DIFF_PUMP"},
		{"DiffPowerSetting", "VM_DIFF_POWER"},
		{"DiffCoastSetting", "VM_DIFF_COAST"},
		{"DiffPreloadSetting", "VM_DIFF_PRELOAD"},
		{"FrontDiffPumpSetting", "VM_FRONT_DIFF_PUMP"},
		{"FrontDiffPowerSetting", "VM_FRONT_DIFF_POWER"},
		{"FrontDiffCoastSetting", "VM_FRONT_DIFF_COAST"},
		{"FrontDiffPreloadSetting", "VM_FRONT_DIFF_PRELOAD"},
		{"RearSplitSetting", "VM_TORQUE_SPLIT"},
		{"GearAutoUpShiftSetting", "VM_GEAR_AUTOUPSHIFT"},
		{"GearAutoDownShiftSetting", "VM_GEAR_AUTODOWNSHIFT"},
	}},
	{"FRONTLEFT", []field{
		{"CamberSetting", "WM_CAMBER-W_FL"},
		{"PressureSetting", "WM_PRESSURE-W_FL"},
		{"PackerSetting", "WM_PACKERS-W_FL"},
		{"SpringSetting", "WM_SPRING-W_FL"},
		{"TenderSpringSetting", "WM_TENDERSPRING-W_FL"},
		{"TenderTravelSetting", "WM_TENDERSPRINGTRAVEL-W_FL"},
		{"SpringRubberSetting", "WM_SRUBBER-W_FL"},
		{"RideHeightSetting", "WM_RIDEHEIGHT-W_FL"},
		{"SlowBumpSetting", "WM_SLOWBUMP-W_FL"},
		{"FastBumpSetting", "WM_FASTBUMP-W_FL"},
		{"SlowReboundSetting", "WM_SLOWREBOUND-W_FL"},
		{"FastReboundSetting", "WM_FASTREBOUND-W_FL"},
		{"BrakeDiscSetting", "WM_BRAKEDISC-W_FL"},
		{"BrakePadSetting", "WM_BRAKEPAD-W_FL"},
	}},
	{"FRONTRIGHT", []field{
		{"CamberSetting", "WM_CAMBER-W_FR"},
		{"PressureSetting", "WM_PRESSURE-W_FR"},
		{"PackerSetting", "WM_PACKERS-W_FR"},
		{"SpringSetting", "WM_SPRING-W_FR"},
		{"TenderSpringSetting", "WM_TENDERSPRING-W_FR"},
		{"TenderTravelSetting", "WM_TENDERSPRINGTRAVEL-W_FR"},
		{"SpringRubberSetting", "WM_SRUBBER-W_FR"},
		{"RideHeightSetting", "WM_RIDEHEIGHT-W_FR"},
		{"SlowBumpSetting", "WM_SLOWBUMP-W_FR"},
		{"FastBumpSetting", "WM_FASTBUMP-W_FR"},
		{"SlowReboundSetting", "WM_SLOWREBOUND-W_FR"},
		{"FastReboundSetting", "WM_FASTREBOUND-W_FR"},
		{"BrakeDiscSetting", "WM_BRAKEDISC-W_FR"},
		{"BrakePadSetting", "WM_BRAKEPAD-W_FR"},
	}},
	{"REARLEFT", []field{
		{"CamberSetting", "WM_CAMBER-W_RL"},
		{"PressureSetting", "WM_PRESSURE-W_RL"},
		{"PackerSetting", "WM_PACKERS-W_RL"},
		{"SpringSetting", "WM_SPRING-W_RL"},
		{"TenderSpringSetting", "WM_TENDERSPRING-W_RL"},
		{"TenderTravelSetting", "WM_TENDERSPRINGTRAVEL-W_RL"},
		{"SpringRubberSetting", "WM_SRUBBER-W_RL"},
		{"RideHeightSetting", "WM_RIDEHEIGHT-W_RL"},
		{"SlowBumpSetting", "WM_SLOWBUMP-W_RL"},
		{"FastBumpSetting", "WM_FASTBUMP-W_RL"},
		{"SlowReboundSetting", "WM_SLOWREBOUND-W_RL"},
		{"FastReboundSetting", "WM_FASTREBOUND-W_RL"},
		{"BrakeDiscSetting", "WM_BRAKEDISC-W_RL"},
		{"BrakePadSetting", "WM_BRAKEPAD-W_RL"},
	}},
	{"REARRIGHT", []field{
		{"CamberSetting", "WM_CAMBER-W_RR"},
		{"PressureSetting", "WM_PRESSURE-W_RR"},
		{"PackerSetting", "WM_PACKERS-W_RR"},
		{"SpringSetting", "WM_SPRING-W_RR"},
		{"TenderSpringSetting", "WM_TENDERSPRING-W_RR"},
		{"TenderTravelSetting", "WM_TENDERSPRINGTRAVEL-W_RR"},
		{"SpringRubberSetting", "WM_SRUBBER-W_RR"},
		{"RideHeightSetting", "WM_RIDEHEIGHT-W_RR"},
		{"SlowBumpSetting", "WM_SLOWBUMP-W_RR"},
		{"FastBumpSetting", "WM_FASTBUMP-W_RR"},
		{"SlowReboundSetting", "WM_SLOWREBOUND-W_RR"},
		{"FastReboundSetting", "WM_FASTREBOUND-W_RR"},
		{"BrakeDiscSetting", "WM_BRAKEDISC-W_RR"},
		{"BrakePadSetting", "WM_BRAKEPAD-W_RR"},
	}},
}

// ExportLMU converts a setup payload into .svm lines. Payload values are
// either {"value": v} objects or bare scalars; absent or null values are
// skipped. Without a class name there is no VehicleClassSetting header and
// the result is nil.
func ExportLMU(source logic.SetupPayload, class string) []string {
	if class == "" || source == nil {
		return nil
	}

	lines := []string{
		`VehicleClassSetting="` + class + `"`,
		"UpgradeSetting=(0,0,0,0)",
		"",
	}
	for _, sec := range lmuSections {
		lines = append(lines, "["+sec.name+"]")
		for _, f := range sec.fields {
			if v, ok := formatValue(source[f.source]); ok {
				lines = append(lines, f.key+"="+v)
			}
		}
		lines = append(lines, "")
	}
	return lines
}

func formatValue(v any) (string, bool) {
	if m, ok := v.(map[string]any); ok {
		v = m["value"]
	}
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case json.Number:
		return x.String(), true
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}
