package oura

const (
	apiV1Base = "https://api.ouraring.com/v1"
	apiV2Base = "https://api.ouraring.com/v2/usercollection"
	cloudBase = "https://cloud.ouraring.com"

	authorizeURL = cloudBase + "/oauth/authorize"
	tokenURL     = cloudBase + "/oauth/token"
)

// AuthStyle selects how the access token travels with a request. The
// v1 API wants it in the query string, v2 wants a Bearer header.
type AuthStyle int

const (
	AuthQueryToken AuthStyle = iota
	AuthBearer
)

// ParamStyle selects the date range parameter names an endpoint
// expects.
type ParamStyle int

const (
	// ParamsStartEnd is the v1 style: start, end.
	ParamsStartEnd ParamStyle = iota
	// ParamsStartEndDate is the v2 daily style: start_date, end_date.
	ParamsStartEndDate
	// ParamsStartEndDatetime is the v2 time-series style:
	// start_datetime, end_datetime, with full timestamps covering the
	// whole day range.
	ParamsStartEndDatetime
)

// Endpoint describes one vendor API route.
type Endpoint struct {
	// ID labels the endpoint in logs and metrics.
	ID string
	// URL is the full route without query parameters.
	URL    string
	Auth   AuthStyle
	Params ParamStyle
	// DataKey is the payload key holding the record list.
	DataKey string
}

var (
	EndpointSleepV1 = Endpoint{
		ID: "sleep_v1", URL: apiV1Base + "/sleep",
		Auth: AuthQueryToken, Params: ParamsStartEnd, DataKey: "sleep",
	}
	EndpointBedtime = Endpoint{
		ID: "bedtime", URL: apiV1Base + "/bedtime",
		Auth: AuthQueryToken, Params: ParamsStartEnd, DataKey: "ideal_bedtimes",
	}
	EndpointUserInfo = Endpoint{
		ID: "userinfo", URL: apiV1Base + "/userinfo",
		Auth: AuthQueryToken,
	}
	EndpointDailyActivity = Endpoint{
		ID: "daily_activity", URL: apiV2Base + "/daily_activity",
		Auth: AuthBearer, Params: ParamsStartEndDate, DataKey: "data",
	}
	EndpointDailyReadiness = Endpoint{
		ID: "daily_readiness", URL: apiV2Base + "/daily_readiness",
		Auth: AuthBearer, Params: ParamsStartEndDate, DataKey: "data",
	}
	EndpointDailySleep = Endpoint{
		ID: "daily_sleep", URL: apiV2Base + "/daily_sleep",
		Auth: AuthBearer, Params: ParamsStartEndDate, DataKey: "data",
	}
	EndpointHeartRate = Endpoint{
		ID: "heartrate", URL: apiV2Base + "/heartrate",
		Auth: AuthBearer, Params: ParamsStartEndDatetime, DataKey: "data",
	}
	EndpointSessions = Endpoint{
		ID: "session", URL: apiV2Base + "/session",
		Auth: AuthBearer, Params: ParamsStartEndDate, DataKey: "data",
	}
	EndpointWorkouts = Endpoint{
		ID: "workout", URL: apiV2Base + "/workout",
		Auth: AuthBearer, Params: ParamsStartEndDate, DataKey: "data",
	}
	EndpointSleepPeriods = Endpoint{
		ID: "sleep_periods", URL: apiV2Base + "/sleep",
		Auth: AuthBearer, Params: ParamsStartEndDate, DataKey: "data",
	}
)
