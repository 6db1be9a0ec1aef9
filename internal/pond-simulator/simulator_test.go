package pond_simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/LeonardoBeccarini/pond_doser/internal/model/messages"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus"
	"github.com/LeonardoBeccarini/pond_doser/pkg/mqttbus/mqtttest"
)

var t0 = time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)

func TestGeneratorStaysInRange(t *testing.T) {
	g := NewGenerator("3", rand.New(rand.NewSource(1)))
	now := t0
	for i := 0; i < 2000; i++ {
		r := g.Next(now)
		require.Equal(t, "3", r.PondID)
		require.True(t, r.PH >= 5.5 && r.PH <= 9.5, "ph %v", r.PH)
		require.True(t, r.Temperature >= 20 && r.Temperature <= 38, "temp %v", r.Temperature)
		require.True(t, r.DO >= 0.5 && r.DO <= 12, "do %v", r.DO)
		now = now.Add(10 * time.Minute)
	}
}

func TestGeneratorIsReproducible(t *testing.T) {
	a := NewGenerator("1", rand.New(rand.NewSource(42)))
	b := NewGenerator("1", rand.New(rand.NewSource(42)))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(t0), b.Next(t0))
	}
}

func TestApplyDoseRaisesPH(t *testing.T) {
	g := NewGenerator("1", rand.New(rand.NewSource(1)))
	g.Set(6.0, 29, 6)
	g.ApplyDose(messages.NewDoseCommand("1", [4]int{0, 10, 0, 0}))
	g.mu.Lock()
	defer g.mu.Unlock()
	assert.InDelta(t, 6.5, g.ph, 1e-9)
	assert.InDelta(t, 6.0, g.do, 1e-9)
}

func TestPondSimulatorPublishesAndAppliesCommands(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	client := mqtttest.NewClient()
	clk := clocktesting.NewFakeClock(t0)

	gen := NewGenerator("2", rand.New(rand.NewSource(7)))
	gen.Set(6.0, 29, 6)
	sim := NewPondSimulator(
		mqttbus.NewConsumer(client, 1, log, CommandTopic),
		mqttbus.NewPublisher(client, SensorTopicPrefix+"2", time.Second, log),
		gen, "2", clk, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Start(ctx, time.Minute)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return client.Subscribed(CommandTopic) && clk.HasWaiters() },
		time.Second, 5*time.Millisecond)

	clk.Step(time.Minute)
	require.Eventually(t, func() bool { return len(client.Published()) == 1 }, time.Second, 5*time.Millisecond)

	pub := client.Published()[0]
	assert.Equal(t, "pond/sensor/2", pub.Topic)
	assert.Equal(t, byte(1), pub.QoS)
	r, err := messages.DecodeSensorReading(pub.Payload)
	require.NoError(t, err)
	assert.Equal(t, "2", r.PondID)
	assert.True(t, r.Timestamp.Equal(t0.Add(time.Minute)))

	cmd, err := json.Marshal(messages.NewDoseCommand("2", [4]int{0, 20, 0, 0}))
	require.NoError(t, err)
	other, err := json.Marshal(messages.NewDoseCommand("9", [4]int{0, 20, 0, 0}))
	require.NoError(t, err)

	gen.mu.Lock()
	before := gen.ph
	gen.mu.Unlock()

	client.Deliver(CommandTopic, &mqtttest.Message{TopicName: CommandTopic, Body: cmd})
	client.Deliver(CommandTopic, &mqtttest.Message{TopicName: CommandTopic, Body: cmd})
	client.Deliver(CommandTopic, &mqtttest.Message{TopicName: CommandTopic, Body: other})
	client.Deliver(CommandTopic, &mqtttest.Message{TopicName: CommandTopic, Body: []byte("nope")})

	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.InDelta(t, before+1.0, gen.ph, 1e-9)
}
