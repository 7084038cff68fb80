package env

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
)

var (
	logLevel     int
	logPath      string
	logEncoding  string
	serviceName  string
	port         int
	region       string
	configPath   string
	downstream   string
	sampleRatio  float64
	disableGops  bool
	gopsPort     int
	disablePprof bool
	pprofPort    int
	localIP      string

	mu     sync.Mutex
	nameMu sync.RWMutex
)

func LogLevel() int {
	//DebugLevel Level = -1
	//InfoLevel Level = 0
	//WarnLevel Level = 1
	//ErrorLevel Level = 2
	return logLevel
}

func LogPath() string {
	if logPath == "" {
		return "stdout"
	}
	return logPath
}

func LogEncoding() string {
	if logEncoding == "" {
		return "console"
	}
	return logEncoding
}

func ServiceName() string {
	nameMu.RLock()
	defer nameMu.RUnlock()
	if serviceName == "" {
		return "sleuth-default-go"
	}
	return serviceName
}

// SetServiceName overrides sleuth_service_name; "" restores the default.
func SetServiceName(name string) {
	nameMu.Lock()
	serviceName = name
	nameMu.Unlock()
}

func Port() int {
	if port == 0 {
		return 8080
	}
	return port
}

func Region() string {
	if region == "" {
		return "empty"
	}
	return region
}

func ConfigPath() string {
	return configPath
}

// Downstream is the base URL of the service called by the client example.
func Downstream() string {
	if downstream == "" {
		return "http://localhost:8081"
	}
	return downstream
}

func SampleRatio() float64 {
	if sampleRatio <= 0 || sampleRatio > 1 {
		return 1.0
	}
	return sampleRatio
}

func LocalIP() string {
	if localIP == "" {
		return getIntranetIP()
	}
	return localIP
}

func DisableGops() bool {
	return disableGops
}

func DisablePprof() bool {
	return disablePprof
}

func GopsPort() int {
	if gopsPort == 0 {
		return 46066
	}
	return gopsPort
}

func PprofPort() int {
	if pprofPort == 0 {
		return 47077
	}
	return pprofPort
}

// Parse parses the command line once. Safe to call from several packages.
func Parse() {
	mu.Lock()
	defer mu.Unlock()
	if !flag.Parsed() {
		flag.Parse()
	}
}

func init() {
	flag.IntVar(&logLevel, "sleuth_log_level", parseInt(os.Getenv("sleuth_log_level")), "-sleuth_log_level 0")
	flag.StringVar(&logPath, "sleuth_log_path", os.Getenv("sleuth_log_path"), "-sleuth_log_path stdout")
	flag.StringVar(&logEncoding, "sleuth_log_encoding", os.Getenv("sleuth_log_encoding"), "-sleuth_log_encoding console")
	flag.StringVar(&serviceName, "sleuth_service_name", os.Getenv("sleuth_service_name"), "-sleuth_service_name logger-server")
	flag.IntVar(&port, "sleuth_service_port", parseInt(os.Getenv("sleuth_service_port")), "-sleuth_service_port 8080")
	flag.StringVar(&region, "sleuth_region", os.Getenv("sleuth_region"), "-sleuth_region eu-west-1")
	flag.StringVar(&configPath, "sleuth_config", os.Getenv("sleuth_config"), "-sleuth_config ./configs/application.yaml")
	flag.StringVar(&downstream, "sleuth_downstream", os.Getenv("sleuth_downstream"), "-sleuth_downstream http://localhost:8081")
	flag.Float64Var(&sampleRatio, "sleuth_sample_ratio", parseFloat(os.Getenv("sleuth_sample_ratio")), "-sleuth_sample_ratio 1.0")
	flag.StringVar(&localIP, "sleuth_local_ip", os.Getenv("sleuth_local_ip"), "-sleuth_local_ip 127.0.0.1")
	flag.BoolVar(&disableGops, "sleuth_disable_gops", parseBool(os.Getenv("sleuth_disable_gops")), "-sleuth_disable_gops false")
	flag.IntVar(&gopsPort, "sleuth_gops_port", parseInt(os.Getenv("sleuth_gops_port")), "-sleuth_gops_port 46066")
	flag.BoolVar(&disablePprof, "sleuth_disable_pprof", parseBool(os.Getenv("sleuth_disable_pprof")), "-sleuth_disable_pprof false")
	flag.IntVar(&pprofPort, "sleuth_pprof_port", parseInt(os.Getenv("sleuth_pprof_port")), "-sleuth_pprof_port 47077")
}

func parseInt(i string) int {
	res, _ := strconv.ParseInt(i, 10, 64)
	return int(res)
}

func parseFloat(f string) float64 {
	res, _ := strconv.ParseFloat(f, 64)
	return res
}

func parseBool(b string) bool {
	ok, _ := strconv.ParseBool(b)
	return ok
}

func getIntranetIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "net.InterfaceAddrs get ip address failed!err:=%v\n", err)
		return ""
	}

	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
