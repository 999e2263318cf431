//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"govee-decoder/pkg/types"
)

const repoRootRel = ".." // relative to ./e2e
const mainPkgRel = "./cmd/govee-bridge"

const mqttPort = nat.Port("1883/tcp")

func TestSmoke_AdvertisementToReading(t *testing.T) {
	repoRoot := repoRootPath(t)
	host, port := startBroker(t)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"HTTP_ADDR="+addr,
		"MQTT_BROKER="+host,
		"MQTT_PORT="+port.Port(),
		"MQTT_CLIENT_ID=govee-bridge-e2e",
		"MQTT_ADVERT_TOPIC=e2e/adverts",
		"MQTT_READING_TOPIC_PREFIX=e2e",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	waitForConnected(t, client, "http://"+addr+"/healthz", 15*time.Second)

	pub := connectMQTT(t, host, port)

	readings := make(chan types.GoveeReading, 1)
	token := pub.Subscribe("e2e/+/reading", 1, func(_ mqtt.Client, msg mqtt.Message) {
		var r types.GoveeReading
		if err := json.Unmarshal(msg.Payload(), &r); err == nil {
			select {
			case readings <- r:
			default:
			}
		}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	advert := `{"address":"a4:c1:38:00:11:22","local_name":"GVH5075_1122","rssi":-60,"data":"88ec000368d15800"}`
	token = pub.Publish("e2e/adverts", 1, false, advert)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("publish: %v", token.Error())
	}

	select {
	case r := <-readings:
		if r.Model != "H5075" {
			t.Errorf("model=%q want=%q", r.Model, "H5075")
		}
		if r.Address != "A4:C1:38:00:11:22" {
			t.Errorf("address=%q want=%q", r.Address, "A4:C1:38:00:11:22")
		}
		if r.Humidity != 44.1 || r.Battery != 88 {
			t.Errorf("humidity=%v battery=%d want 44.1 / 88", r.Humidity, r.Battery)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("no reading published")
	}

	stopBridge(t, cmd)
}

func startBroker(t *testing.T) (string, nat.Port) {
	t.Helper()

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{string(mqttPort)},
		WaitingFor:   wait.ForListeningPort(mqttPort).WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, mqttPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	return host, port
}

func connectMQTT(t *testing.T, host string, port nat.Port) mqtt.Client {
	t.Helper()

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", host, port.Port())).
		SetClientID("govee-e2e-observer")

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("mqtt connect: %v", token.Error())
	}

	t.Cleanup(func() { c.Disconnect(250) })
	return c
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "govee-bridge")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

// waitForConnected polls /healthz until the bridge reports a live MQTT session.
func waitForConnected(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			var body struct {
				Status        string `json:"status"`
				MQTTConnected bool   `json:"mqtt_connected"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			_ = resp.Body.Close()
			if decodeErr == nil && resp.StatusCode == http.StatusOK && body.MQTTConnected {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("bridge not connected after %s: %s", timeout, url)
}

func stopBridge(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("bridge did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("bridge exited non-zero: %v", err)
			}
			t.Fatalf("bridge wait error: %v", err)
		}
	}
}
