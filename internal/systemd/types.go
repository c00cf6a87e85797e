package systemd

// UnitFileName is the file written by -generate-service
const UnitFileName = "hftp.service"

// UnitParams describes the service unit for running hftp under systemd
type UnitParams struct {
	ExecPath string
	WorkDir  string
	User     string
	Port     int
}
