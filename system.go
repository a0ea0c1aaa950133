package main

import (
	"fmt"
	"image"
	"image/color"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-ping/ping"
	"golang.org/x/image/font"
)

// System monitor thresholds (percent, degrees C).
const (
	CPU_WARNING   = 75
	CPU_CRITICAL  = 90
	MEM_WARNING   = 80
	MEM_CRITICAL  = 95
	TEMP_WARNING  = 65
	TEMP_CRITICAL = 80
	DISK_WARNING  = 85
	DISK_CRITICAL = 95
)

var cpuHistory = newStatHistory(DEFAULT_HISTORY_WINDOW, MAX_HISTORY_SAMPLES)

// systemSampler feeds the CPU history used by the system screen's
// graph. Runs for the process lifetime.
func systemSampler(stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if usage, err := getCPUUsage(); err == nil {
				cpuHistory.Record(usage, now)
			}
		}
	}
}

// SystemScreen renders CPU, memory, temperature, disk and network
// health for the board itself.
type SystemScreen struct{}

func (s *SystemScreen) Name() string { return "system" }

func (s *SystemScreen) Render(cfg *Config) (*image.RGBA, error) {
	frame := newFrame(cfg, INKY_WHITE)

	headerFace := getFontFace(cfg, "header")
	mediumFace := getFontFace(cfg, "medium")
	smallFace := getFontFace(cfg, "small")

	// header band
	drawRect(frame, 0, 0, cfg.PanelWidth, 50, INKY_BLUE)
	drawText(frame, "System", 20, 8, headerFace, INKY_WHITE, false)
	hostname, _ := os.Hostname()
	now := time.Now()
	drawText(frame, fmt.Sprintf("%s  %s", hostname, now.Format("Mon 15:04")),
		cfg.PanelWidth-20-measureText(smallFace, fmt.Sprintf("%s  %s", hostname, now.Format("Mon 15:04"))),
		16, smallFace, INKY_WHITE, false)

	panelW := (cfg.PanelWidth - 60) / 2
	panelH := 90

	// CPU usage
	cpuText := "N/A"
	cpuColor := INKY_BLACK
	if usage, err := getCPUUsage(); err == nil {
		cpuText = fmt.Sprintf("%.0f%%", usage)
		cpuColor = statusColor(usage, CPU_WARNING, CPU_CRITICAL)
	}
	drawStatPanel(frame, cfg, 20, 70, panelW, panelH, "CPU", cpuText, cpuColor, mediumFace, smallFace)

	// CPU temperature
	tempText := "N/A"
	tempColor := INKY_BLACK
	if temp, err := getCpuTemp(); err == nil {
		tempC := temp / 1000
		tempText = fmt.Sprintf("%.1f°C", tempC)
		tempColor = statusColor(tempC, TEMP_WARNING, TEMP_CRITICAL)
	}
	drawStatPanel(frame, cfg, 40+panelW, 70, panelW, panelH, "Temperature", tempText, tempColor, mediumFace, smallFace)

	// memory
	memText := "N/A"
	memColor := INKY_BLACK
	if used, total, err := getMemUsedAndTotalGB(); err == nil && total > 0 {
		memText = fmt.Sprintf("%.1f / %.1f GB", used, total)
		memColor = statusColor(used/total*100, MEM_WARNING, MEM_CRITICAL)
	}
	drawStatPanel(frame, cfg, 20, 170, panelW, panelH, "Memory", memText, memColor, mediumFace, smallFace)

	// disk
	diskText := "N/A"
	diskColor := INKY_BLACK
	if usedMB, totalMB, err := getDiskUsage(); err == nil && totalMB > 0 {
		diskText = fmt.Sprintf("%.1f / %.1f GB", float64(usedMB)/1024, float64(totalMB)/1024)
		diskColor = statusColor(float64(usedMB)/float64(totalMB)*100, DISK_WARNING, DISK_CRITICAL)
	}
	drawStatPanel(frame, cfg, 40+panelW, 170, panelW, panelH, "Disk", diskText, diskColor, mediumFace, smallFace)

	// network line: local IP and ping latency
	netText := "LAN: N/A"
	if ip, err := getLocalIPv4(); err == nil {
		netText = "LAN: " + ip
	}
	site := cfg.PingSite
	if site == "" {
		site = "8.8.8.8"
	}
	if rtt, err := pingICMP(site); err == nil {
		netText += fmt.Sprintf("   ping %s: %d ms", site, rtt)
	} else {
		netText += fmt.Sprintf("   ping %s: offline", site)
	}
	drawText(frame, netText, 20, 272, smallFace, INKY_BLACK, false)

	// CPU history graph
	graphY := 300
	graphH := cfg.PanelHeight - graphY - 20
	drawText(frame, "CPU history", 20, graphY-2, smallFace, INKY_BLACK, false)
	drawHistoryGraph(frame, 20, graphY+20, cfg.PanelWidth-40, graphH-20,
		cpuHistory.Snapshot(), 100, color.RGBA{0, 0, 255, 255})

	return quantizeFrame(frame), nil
}

// drawStatPanel draws one rounded stat box with a label and value.
func drawStatPanel(frame *image.RGBA, cfg *Config, x, y, w, h int, label, value string, valueColor color.Color, valueFace, labelFace font.Face) {
	fillRoundedRect(frame, float64(x), float64(y), float64(w), float64(h), 8, INKY_WHITE, INKY_BLACK)
	drawText(frame, label, x+12, y+8, labelFace, INKY_BLACK, false)
	drawText(frame, value, x+w/2, y+40, valueFace, valueColor, true)
}

// statusColor maps a metric value against its thresholds.
func statusColor(value, warning, critical float64) color.Color {
	switch {
	case value >= critical:
		return INKY_RED
	case value >= warning:
		return INKY_ORANGE
	default:
		return INKY_GREEN
	}
}

// --------------- stat collectors ---------------

// CPUStats represents a CPU usage snapshot.
type CPUStats struct {
	User, Nice, System, Idle, Iowait, Irq, Softirq, Steal uint64
}

func readCPUStats() ([]CPUStats, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return nil, err
	}
	return parseCPUStats(data), nil
}

func parseCPUStats(data []byte) []CPUStats {
	var stats []CPUStats
	lines := strings.Split(string(data), "\n")

	for _, line := range lines {
		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			fields := strings.Fields(line)
			if len(fields) < 8 {
				continue
			}
			var stat CPUStats
			stat.User, _ = strconv.ParseUint(fields[1], 10, 64)
			stat.Nice, _ = strconv.ParseUint(fields[2], 10, 64)
			stat.System, _ = strconv.ParseUint(fields[3], 10, 64)
			stat.Idle, _ = strconv.ParseUint(fields[4], 10, 64)
			stat.Iowait, _ = strconv.ParseUint(fields[5], 10, 64)
			stat.Irq, _ = strconv.ParseUint(fields[6], 10, 64)
			stat.Softirq, _ = strconv.ParseUint(fields[7], 10, 64)
			if len(fields) > 8 {
				stat.Steal, _ = strconv.ParseUint(fields[8], 10, 64)
			}
			stats = append(stats, stat)
		}
	}

	return stats
}

func getCPUUsage() (float64, error) {
	stats1, err := readCPUStats()
	if err != nil {
		return 0, err
	}

	time.Sleep(500 * time.Millisecond)

	stats2, err := readCPUStats()
	if err != nil {
		return 0, err
	}

	usages := cpuUsagesFromStats(stats1, stats2)
	if len(usages) == 0 {
		return 0, fmt.Errorf("no per-core stats in /proc/stat")
	}

	total := 0.0
	for _, cpu := range usages {
		total += cpu
	}
	return total / float64(len(usages)), nil
}

func cpuUsagesFromStats(stats1, stats2 []CPUStats) []float64 {
	var usages []float64
	for i := 0; i < len(stats1) && i < len(stats2); i++ {
		idle1 := stats1[i].Idle + stats1[i].Iowait
		idle2 := stats2[i].Idle + stats2[i].Iowait

		nonIdle1 := stats1[i].User + stats1[i].Nice + stats1[i].System +
			stats1[i].Irq + stats1[i].Softirq + stats1[i].Steal
		nonIdle2 := stats2[i].User + stats2[i].Nice + stats2[i].System +
			stats2[i].Irq + stats2[i].Softirq + stats2[i].Steal

		total1 := idle1 + nonIdle1
		total2 := idle2 + nonIdle2

		totalDelta := float64(total2 - total1)
		if totalDelta <= 0 {
			continue
		}
		idleDelta := float64(idle2 - idle1)
		usages = append(usages, (totalDelta-idleDelta)/totalDelta*100)
	}
	return usages
}

// getCpuTemp returns CPU temperature in millidegrees from the first
// thermal zone.
func getCpuTemp() (float64, error) {
	content, err := os.ReadFile("/sys/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(content)), 64)
}

// getMemUsedAndTotalGB returns used and total memory in GB.
func getMemUsedAndTotalGB() (usedGB float64, totalGB float64, err error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, 0, err
	}
	return parseMemInfo(data)
}

func parseMemInfo(data []byte) (usedGB float64, totalGB float64, err error) {
	var memTotal, memAvailable float64

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key, value := fields[0], fields[1]
		switch key {
		case "MemTotal:":
			memTotal, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return 0, 0, err
			}
		case "MemAvailable:":
			memAvailable, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return 0, 0, err
			}
		}
		if memTotal > 0 && memAvailable > 0 {
			break
		}
	}

	if memTotal == 0 {
		return 0, 0, fmt.Errorf("failed to read MemTotal")
	}

	usedKB := memTotal - memAvailable
	return usedKB / 1024 / 1024, memTotal / 1024 / 1024, nil
}

// getDiskUsage returns used and total space in MB for the root
// partition.
func getDiskUsage() (usedMB, totalMB uint64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs("/", &stat); err != nil {
		return 0, 0, fmt.Errorf("failed to stat filesystem: %v", err)
	}

	totalMB = (uint64(stat.Bsize) * stat.Blocks) / (1024 * 1024)
	freeMB := (uint64(stat.Bsize) * stat.Bfree) / (1024 * 1024)
	return totalMB - freeMB, totalMB, nil
}

// getLocalIPv4 returns the first non-loopback IPv4 address.
func getLocalIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}

// pingICMP uses github.com/go-ping/ping to perform an ICMP ping.
// Note: raw ICMP ping usually requires root privileges.
func pingICMP(host string) (int64, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, err
	}
	pinger.SetPrivileged(true)
	pinger.Count = 1
	pinger.Timeout = 2 * time.Second

	if err := pinger.Run(); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no reply from %s", host)
	}
	return int64(stats.AvgRtt / time.Millisecond), nil
}
