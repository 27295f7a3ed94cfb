// Package acquisition реализует цикл опроса датчиков.
//
// Loop с постоянным периодом опрашивает активные датчики ростера через
// sensor.Source, собирает снапшот с общим временем тика и передаёт его
// дальше строго в таком порядке: store.Store, Persister, Broadcaster, Mirror.
//
// Ошибка датчика делает его показание Stale на один тик. Stale-показания
// рассылаются, но не сохраняются.
package acquisition
