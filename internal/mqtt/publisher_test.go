package mqtt

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done bool
	err  error
}

func (t *fakeToken) Wait() bool                     { return t.done }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	msgs         []published
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.msgs = append(c.msgs, published{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublisher_Send(t *testing.T) {
	fc := &fakeClient{token: &fakeToken{done: true}}
	p := newPublisher(fc, Config{Topic: "stamp/packets", QoS: 1})

	require.NoError(t, p.Send([]byte{0x30, 0x00}))
	require.NoError(t, p.Send(nil))
	require.Len(t, fc.msgs, 1)
	assert.Equal(t, published{"stamp/packets", 1, false, []byte{0x30, 0x00}}, fc.msgs[0])
	assert.Equal(t, "mqtt:stamp/packets", p.String())

	require.NoError(t, p.Close())
	assert.True(t, fc.disconnected)
}

func TestPublisher_SendTimeout(t *testing.T) {
	p := newPublisher(&fakeClient{token: &fakeToken{done: false}}, Config{Topic: "t"})
	err := p.Send([]byte{1})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestPublisher_SendError(t *testing.T) {
	boom := errors.New("not connected")
	p := newPublisher(&fakeClient{token: &fakeToken{done: true, err: boom}}, Config{Topic: "t"})
	err := p.Send([]byte{1})
	assert.ErrorIs(t, err, boom)
}

func TestConnect_Validates(t *testing.T) {
	_, err := Connect(Config{Broker: "tcp://127.0.0.1:1"})
	assert.Error(t, err)
	_, err = Connect(Config{Broker: "tcp://127.0.0.1:1", Topic: "t", QoS: 3})
	assert.Error(t, err)
}
