package testserver

const (
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/openid-configuration/jwks"
	RouteAuthorize             = "/connect/authorize"
	RouteToken                 = "/connect/token"
	RouteRevocation            = "/connect/revocation"
	RouteEndSession            = "/connect/endsession"
	RouteUserInfo              = "/connect/userinfo"
	RouteDeviceInit            = "/my/devices/register/init"
	RouteDeviceAuthorize       = "/my/devices/connect/authorize"
	RouteDeviceComplete        = "/my/devices/register/complete"
	RouteDevices               = "/api/my/devices"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.LoggingMiddleware))

	s.RegisterRouteFunc("POST "+RouteToken, ChainMiddleware(s.Token(), s.LoggingMiddleware))
	s.RegisterRouteFunc("POST "+RouteRevocation, ChainMiddleware(s.Revoke(), s.LoggingMiddleware))
	s.RegisterRouteFunc("GET "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.LoggingMiddleware, s.RequireBearer))

	s.RegisterRouteFunc("POST "+RouteDeviceInit, ChainMiddleware(s.DeviceInit(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("POST "+RouteDeviceAuthorize, ChainMiddleware(s.DeviceAuthorize(), s.LoggingMiddleware))
	s.RegisterRouteFunc("POST "+RouteDeviceComplete, ChainMiddleware(s.DeviceComplete(), s.LoggingMiddleware, s.RequireBearer))

	s.RegisterRouteFunc("GET "+RouteDevices, ChainMiddleware(s.ListDevices(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("POST "+RouteDevices, ChainMiddleware(s.CreateDevice(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("GET "+RouteDevices+"/{id}", ChainMiddleware(s.GetDevice(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("PUT "+RouteDevices+"/{id}", ChainMiddleware(s.UpdateDevice(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("DELETE "+RouteDevices+"/{id}", ChainMiddleware(s.DeleteDevice(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("PUT "+RouteDevices+"/{id}/trust", ChainMiddleware(s.TrustDevice(), s.LoggingMiddleware, s.RequireBearer))
	s.RegisterRouteFunc("PUT "+RouteDevices+"/{id}/untrust", ChainMiddleware(s.UntrustDevice(), s.LoggingMiddleware, s.RequireBearer))
}
