package rpc

const (
	AccountServiceName = "circles.v1.AccountService"
	CircleServiceName  = "circles.v1.CircleService"
)

// Fully-qualified procedure paths, mounted verbatim on the router.
const (
	AccountRegisterProcedure      = "/" + AccountServiceName + "/Register"
	AccountLoginProcedure         = "/" + AccountServiceName + "/Login"
	AccountLogoutProcedure        = "/" + AccountServiceName + "/Logout"
	AccountGetProfileProcedure    = "/" + AccountServiceName + "/GetProfile"
	AccountUpdateProfileProcedure = "/" + AccountServiceName + "/UpdateProfile"

	CircleCreateProcedure           = "/" + CircleServiceName + "/CreateCircle"
	CircleFindProcedure             = "/" + CircleServiceName + "/FindCircle"
	CircleJoinProcedure             = "/" + CircleServiceName + "/JoinCircle"
	CircleListMineProcedure         = "/" + CircleServiceName + "/ListMyCircles"
	CircleGeneratePasscodeProcedure = "/" + CircleServiceName + "/GeneratePasscode"
)
